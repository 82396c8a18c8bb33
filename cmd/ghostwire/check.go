package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/benaskins/ghostwire/internal/wire"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const maxResponseSize = 16 << 20

type checkResult struct {
	OK         bool     `json:"ok"`
	Status     int      `json:"status"`
	Kind       string   `json:"kind,omitempty"`
	Message    string   `json:"message,omitempty"`
	AlertText  *string  `json:"alert_text,omitempty"`
	HasScreen  bool     `json:"has_screen,omitempty"`
	StackTrace []string `json:"stack_trace,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Decode a wire protocol response",
	Long:  "Read a JSON wire protocol response from a file or stdin and report whether it is a success or which driver error it carries.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("json", false, "Output as JSON (default when stdout is not a terminal)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	if !cmd.Flags().Changed("json") && !term.IsTerminal(int(os.Stdout.Fd())) {
		jsonOut = true
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(io.LimitReader(in, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	resp, err := wire.Parse(data)
	if err != nil {
		return err
	}
	checkErr := wire.CheckResponse(resp)
	result := interpret(resp, checkErr)

	if jsonOut {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		printHuman(cmd.OutOrStdout(), result)
	}

	if checkErr != nil {
		return fmt.Errorf("response carries a driver error: %s", result.Kind)
	}
	return nil
}

func interpret(resp wire.Response, err error) checkResult {
	result := checkResult{OK: err == nil, Status: resp.Status}

	var de *wire.Error
	var re *wire.ResponseError
	switch {
	case errors.As(err, &de):
		result.Kind = de.Kind.String()
		result.Message = de.Message
		result.HasScreen = de.Screen != ""
		result.StackTrace = de.StackTrace
		if de.Alert != nil {
			result.AlertText = &de.Alert.Text
		}
	case errors.As(err, &re):
		result.Kind = "error in response"
		result.Message = re.Message
	}
	return result
}

func printHuman(w io.Writer, r checkResult) {
	if r.OK {
		fmt.Fprintf(w, "OK    status %d\n", r.Status)
		return
	}
	fmt.Fprintf(w, "FAIL  status %d: %s\n", r.Status, r.Kind)
	if r.Message != "" {
		fmt.Fprintf(w, "      message: %s\n", r.Message)
	}
	if r.AlertText != nil {
		fmt.Fprintf(w, "      alert:   %q\n", *r.AlertText)
	}
	if r.HasScreen {
		fmt.Fprintln(w, "      screenshot attached")
	}
	for _, line := range r.StackTrace {
		fmt.Fprintln(w, line)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
