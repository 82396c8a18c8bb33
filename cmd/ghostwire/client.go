package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/benaskins/ghostwire/internal/api"
	"github.com/benaskins/ghostwire/internal/config"
	"github.com/spf13/cobra"
)

// apiTarget returns a client and base URL for the control API named in
// the config. The socket wins when both are set.
func apiTarget() (*http.Client, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	switch {
	case cfg.API.Socket != "":
		socketPath := cfg.API.Socket
		return &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		}, "http://ghostwire", nil
	case cfg.API.Addr != "":
		return &http.Client{Timeout: 30 * time.Second}, "http://" + cfg.API.Addr, nil
	}
	return nil, "", fmt.Errorf("no control API configured (set api.socket or api.addr in %s)", configPath)
}

func apiDo(method, path string, v any) error {
	client, base, err := apiTarget()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, base+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to ghostwire: %w (is \"ghostwire run\" running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running driver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st api.DriverState
		if err := apiDo(http.MethodGet, "/v1/driver", &st); err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st, time.Now())
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running driver to stop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var result map[string]string
		if err := apiDo(http.MethodPost, "/v1/driver/stop", &result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "driver %s\n", result["status"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
}

func printStatus(out io.Writer, st api.DriverState, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tSTATE\tPID\tUPTIME\tRSS\tCPU")

	pid, uptime, rss, cpu := "-", "-", "-", "-"
	if st.PID > 0 {
		pid = fmt.Sprintf("%d", st.PID)
	}
	if !st.StartedAt.IsZero() && !st.Exited {
		uptime = now.Sub(st.StartedAt).Truncate(time.Second).String()
	}
	if st.Usage != nil {
		rss = fmt.Sprintf("%.1fMB", float64(st.Usage.RSSBytes)/(1<<20))
		cpu = fmt.Sprintf("%.1f%%", st.Usage.CPUPercent)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", st.URL, st.State, pid, uptime, rss, cpu)
	w.Flush()

	if st.Exited {
		detail := fmt.Sprintf("\nexited with code %d", st.ExitCode)
		if st.Error != "" {
			detail += ": " + st.Error
		}
		fmt.Fprintln(out, detail)
	}
}
