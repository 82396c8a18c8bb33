package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benaskins/ghostwire/internal/api"
	"github.com/benaskins/ghostwire/internal/audit"
	"github.com/benaskins/ghostwire/internal/config"
	"github.com/benaskins/ghostwire/internal/health"
	"github.com/benaskins/ghostwire/internal/logbuf"
	"github.com/benaskins/ghostwire/internal/metrics"
	"github.com/benaskins/ghostwire/internal/port"
	"github.com/benaskins/ghostwire/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const logTailLines = 20

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the driver and keep it running",
	Long:  "Start the driver, wait until it accepts connections, print its WebDriver URL, and stop it on SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

var (
	runExecutable string
	runPort       int
	runLogPath    string
	runArgs       []string
	runAPIAddr    string
	runAPISocket  string
)

func init() {
	runCmd.Flags().StringVar(&runExecutable, "executable", "", "Path to the driver executable (overrides config)")
	runCmd.Flags().IntVar(&runPort, "port", 0, "Port for --webdriver, 0 picks a free one (overrides config)")
	runCmd.Flags().StringVar(&runLogPath, "log-path", "", "Driver log file (overrides config)")
	runCmd.Flags().StringArrayVar(&runArgs, "arg", nil, "Extra driver argument, repeatable (replaces config args)")
	runCmd.Flags().StringVar(&runAPIAddr, "api-addr", "", "TCP address for the control API and /metrics, e.g. 127.0.0.1:9100 (overrides config)")
	runCmd.Flags().StringVar(&runAPISocket, "api-socket", "", "Unix socket path for the control API (overrides config)")
	rootCmd.AddCommand(runCmd)
}

// loadRunConfig loads the config file and applies flag overrides.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("executable") {
		cfg.Executable = runExecutable
	}
	if flags.Changed("port") {
		cfg.Port = runPort
	}
	if flags.Changed("log-path") {
		cfg.LogPath = runLogPath
	}
	if flags.Changed("arg") {
		cfg.Args = runArgs
	}
	if flags.Changed("api-addr") {
		cfg.API.Addr = runAPIAddr
	}
	if flags.Changed("api-socket") {
		cfg.API.Socket = runAPISocket
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serviceConfig(cfg *config.Config) service.Config {
	return service.Config{
		Executable:  cfg.Executable,
		Host:        cfg.Host,
		Port:        cfg.Port,
		Args:        cfg.Args,
		Env:         cfg.EnvList(),
		LogPath:     cfg.LogPath,
		StopTimeout: cfg.StopTimeout.Duration,
	}
}

func readyConfig(cfg *config.Config) health.Config {
	return health.Config{
		Type:     cfg.Ready.Type,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Path:     cfg.Ready.Path,
		Interval: cfg.Ready.Interval.Duration,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Port == 0 {
		p, err := port.Free(cfg.Host)
		if err != nil {
			return err
		}
		cfg.Port = p
		slog.Debug("assigned free port", "port", p)
	}

	reg := prometheus.NewRegistry()
	opts := []service.Option{service.WithRecorder(metrics.New(reg))}
	if cfg.AuditLog != "" {
		journal, err := audit.NewLogger(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, service.WithRecorder(journal.Recorder(cfg.Executable, service.URL(cfg.Host, cfg.Port))))
	}

	svc, err := service.New(serviceConfig(cfg), opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	if err := svc.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Ready.Timeout.Duration)
	go func() {
		// Abort the readiness wait if the driver dies or we are interrupted.
		select {
		case <-svc.Done():
		case sig := <-sigCh:
			sigCh <- sig
		case <-ctx.Done():
		}
		cancel()
	}()
	err = health.WaitHealthy(ctx, readyConfig(cfg))
	cancel()
	if err != nil {
		if info := svc.Info(); info.Exited {
			err = fmt.Errorf("driver exited with code %d", info.ExitCode)
		}
		svc.Stop(context.Background())
		printLogTail(cmd, svc.LogPath())
		return fmt.Errorf("driver not ready: %w", err)
	}

	if cfg.API.Addr != "" || cfg.API.Socket != "" {
		srv := api.NewServer(svc, metrics.Handler(reg))
		if addr := cfg.API.Addr; addr != "" {
			go serveAPI(func() error { return srv.ListenTCP(addr) })
		}
		if sock := cfg.API.Socket; sock != "" {
			// A stale socket from a crashed run would make Listen fail.
			os.Remove(sock)
			go serveAPI(func() error { return srv.ListenUnix(sock) })
			defer os.Remove(sock)
		}
		defer srv.Shutdown(context.Background())
	}

	slog.Info("driver ready", "url", svc.ServiceURL(), "pid", svc.Info().PID)
	fmt.Fprintln(cmd.OutOrStdout(), svc.ServiceURL())

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case <-svc.Done():
		info := svc.Info()
		if info.StopRequested {
			svc.Stop(context.Background())
			slog.Info("driver stopped on request")
			return nil
		}
		svc.Stop(context.Background())
		printLogTail(cmd, svc.LogPath())
		return fmt.Errorf("driver exited unexpectedly with code %d", info.ExitCode)
	}

	svc.Stop(context.Background())
	return nil
}

func serveAPI(listen func() error) {
	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("API server error", "error", err)
	}
}

// printLogTail shows the end of the driver log after a failure.
func printLogTail(cmd *cobra.Command, path string) {
	lines, err := logbuf.TailFile(path, logTailLines)
	if err != nil {
		slog.Debug("could not read driver log", "path", path, "error", err)
		return
	}
	if len(lines) == 0 {
		return
	}
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "last %d lines of %s:\n", len(lines), path)
	for _, line := range lines {
		fmt.Fprintf(w, "  | %s\n", line)
	}
}
