// Package service supervises a single GhostDriver process: it spawns the
// executable with a --webdriver port, routes its output to a log file, and
// shuts it down exactly once.
//
// Callers own shutdown. Stop (or Close) must be called explicitly, usually
// deferred right after New. A cleanup registered with the runtime stops a
// Service that becomes unreachable while still running, but that is a last
// resort with no timing guarantee.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"
)

// State is the lifecycle state of a Service. The only transitions are
// not_started → running → stopped and not_started → stopped.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
)

// StopMode records how a Stop call ended the process.
type StopMode string

const (
	// StopNone means there was no process to stop.
	StopNone     StopMode = "none"
	StopGraceful StopMode = "graceful"
	StopForced   StopMode = "forced"
)

const (
	DefaultLogPath     = "ghostdriver.log"
	DefaultHost        = "localhost"
	DefaultStopTimeout = 10 * time.Second

	// killGrace bounds the wait after SIGKILL so a stuck zombie cannot
	// hang Stop.
	killGrace = 5 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrStopped        = errors.New("service stopped")
)

// Config describes the driver process. Port must already be resolved; use
// port.Free for automatic assignment.
type Config struct {
	Executable string
	Host       string // default "localhost"
	Port       int
	Args       []string // inserted between the executable and --webdriver
	Env        []string // KEY=VALUE entries appended to the inherited environment
	LogPath    string   // default "ghostdriver.log", truncated on New

	// StopTimeout bounds the wait after SIGTERM before the process is
	// killed. Zero means DefaultStopTimeout, negative waits without bound.
	StopTimeout time.Duration
}

// ProcessInfo holds runtime information about the driver process.
type ProcessInfo struct {
	PID       int
	State     State
	StartedAt time.Time
	Exited    bool
	ExitCode  int
	Error     string

	// StopRequested is set once Stop has begun, so an exit after it is
	// expected rather than a crash.
	StopRequested bool
}

// Recorder receives lifecycle events. *metrics.Metrics and the audit
// journal implement it.
type Recorder interface {
	ProcessStarted()
	ProcessStartFailed()
	ProcessStopped(mode StopMode)
}

type multiRecorder []Recorder

func (m multiRecorder) ProcessStarted() {
	for _, r := range m {
		r.ProcessStarted()
	}
}

func (m multiRecorder) ProcessStartFailed() {
	for _, r := range m {
		r.ProcessStartFailed()
	}
}

func (m multiRecorder) ProcessStopped(mode StopMode) {
	for _, r := range m {
		r.ProcessStopped(mode)
	}
}

// Option configures a Service.
type Option func(*supervisor)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *supervisor) { s.logger = l }
}

// WithRecorder reports lifecycle events to r. It may be given more than
// once; every recorder sees every event, in the order added.
func WithRecorder(r Recorder) Option {
	return func(s *supervisor) { s.recorders = append(s.recorders, r) }
}

// Service owns one driver process and its log file.
type Service struct {
	sup     *supervisor
	cleanup runtime.Cleanup
}

// URL returns the WebDriver endpoint for a driver listening on host:port.
func URL(host string, port int) string {
	return baseURL(host, port) + "/wd/hub"
}

func baseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// New validates cfg and opens the log file. The process is not spawned
// until Start.
func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Executable == "" {
		return nil, fmt.Errorf("executable path is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range (resolve port 0 before creating the service)", cfg.Port)
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogPath
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	cfg.Args = slices.Clone(cfg.Args)
	cfg.Env = slices.Clone(cfg.Env)

	log, err := os.Create(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("opening driver log: %w", err)
	}

	sup := &supervisor{
		cfg:   cfg,
		log:   log,
		state: StateNotStarted,
	}
	for _, opt := range opts {
		opt(sup)
	}
	if sup.logger == nil {
		sup.logger = slog.With("component", "service", "port", cfg.Port)
	}

	s := &Service{sup: sup}
	s.cleanup = runtime.AddCleanup(s, (*supervisor).reclaim, sup)
	return s, nil
}

// Start spawns the driver process. It does not wait for the driver to
// accept connections. A spawn failure is returned as is; there is no retry.
func (s *Service) Start() error {
	return s.sup.start()
}

// Stop closes the log file and terminates the process, escalating to a kill
// when StopTimeout or ctx expires first. It is safe to call any number of
// times, concurrently, and before Start.
func (s *Service) Stop(ctx context.Context) {
	s.cleanup.Stop()
	s.sup.stop(ctx)
}

// Close stops the service without a deadline beyond StopTimeout. It always
// returns nil.
func (s *Service) Close() error {
	s.Stop(context.Background())
	return nil
}

// ServiceURL returns the WebDriver endpoint, e.g. http://localhost:4444/wd/hub.
// It does not depend on the process state.
func (s *Service) ServiceURL() string {
	return URL(s.sup.cfg.Host, s.sup.cfg.Port)
}

// BaseURL returns the scheme, host and port without the /wd/hub prefix.
func (s *Service) BaseURL() string {
	return baseURL(s.sup.cfg.Host, s.sup.cfg.Port)
}

func (s *Service) Port() int       { return s.sup.cfg.Port }
func (s *Service) LogPath() string { return s.sup.cfg.LogPath }

// Args returns the full argument vector, executable first.
func (s *Service) Args() []string {
	return s.sup.argv()
}

// Done returns a channel closed when the process exits. It is nil before a
// successful Start.
func (s *Service) Done() <-chan struct{} {
	s.sup.mu.Lock()
	defer s.sup.mu.Unlock()
	return s.sup.done
}

// Info returns the current process state.
func (s *Service) Info() ProcessInfo {
	return s.sup.info()
}

type supervisor struct {
	cfg       Config
	logger    *slog.Logger
	recorders multiRecorder

	// stopMu serializes stop calls end to end.
	stopMu sync.Mutex

	mu        sync.Mutex
	state     State
	log       *os.File
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	startedAt time.Time
	done      chan struct{}
	exitCode  int
	exitErr   error

	stopRequested bool
}

func (p *supervisor) argv() []string {
	argv := make([]string, 0, len(p.cfg.Args)+2)
	argv = append(argv, p.cfg.Executable)
	argv = append(argv, p.cfg.Args...)
	return append(argv, fmt.Sprintf("--webdriver=%d", p.cfg.Port))
}

func (p *supervisor) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.state == StateRunning:
		return ErrAlreadyStarted
	case p.state == StateStopped, p.log == nil:
		return ErrStopped
	}

	argv := p.argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = p.log
	cmd.Stderr = p.log
	if len(p.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.Env...)
	}
	configureCommand(cmd)

	// The driver gets a live stdin it may read or ignore; the pipe stays
	// open until the process exits.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.recorders.ProcessStartFailed()
		return fmt.Errorf("creating stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.recorders.ProcessStartFailed()
		return fmt.Errorf("starting %s: %w", p.cfg.Executable, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.state = StateRunning
	p.startedAt = time.Now()
	p.done = make(chan struct{})
	go p.wait(cmd, p.done)

	p.recorders.ProcessStarted()
	p.logger.Info("driver started", "pid", cmd.Process.Pid, "args", argv, "log", p.cfg.LogPath)
	return nil
}

func (p *supervisor) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	p.mu.Lock()
	p.exitCode = code
	p.exitErr = err
	p.mu.Unlock()
	close(done)

	p.logger.Debug("driver exited", "pid", cmd.Process.Pid, "exit_code", code)
}

func (p *supervisor) stop(ctx context.Context) {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()

	// The log is closed before anything else, whether or not a process
	// was ever started.
	p.mu.Lock()
	if p.log != nil {
		if err := p.log.Close(); err != nil {
			p.logger.Warn("closing driver log", "path", p.cfg.LogPath, "error", err)
		}
		p.log = nil
	}
	prev := p.state
	cmd, done := p.cmd, p.done
	p.stopRequested = true
	p.mu.Unlock()

	switch prev {
	case StateStopped:
		return
	case StateNotStarted:
		p.setState(StateStopped)
		p.recorders.ProcessStopped(StopNone)
		return
	}

	mode := p.terminate(ctx, cmd.Process, done)
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	p.setState(StateStopped)
	p.recorders.ProcessStopped(mode)
	p.logger.Info("driver stopped", "pid", cmd.Process.Pid, "mode", mode)
}

func (p *supervisor) terminate(ctx context.Context, proc *os.Process, done <-chan struct{}) StopMode {
	// A reaped process's group id is free for reuse; never signal it.
	select {
	case <-done:
		return StopGraceful
	default:
	}

	if err := sendTerminate(proc); err != nil {
		switch {
		case isUnsupportedSignal(err):
			p.logger.Debug("termination signal not supported, killing", "pid", proc.Pid)
			return p.kill(proc, done)
		case isProcessGone(err):
			// Already exited; done is closed or about to be.
		default:
			p.logger.Warn("signalling driver", "pid", proc.Pid, "error", err)
			return p.kill(proc, done)
		}
	}

	var timeout <-chan time.Time
	if p.cfg.StopTimeout > 0 {
		t := time.NewTimer(p.cfg.StopTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-done:
		return StopGraceful
	case <-timeout:
		p.logger.Warn("driver did not exit after SIGTERM, killing", "pid", proc.Pid, "timeout", p.cfg.StopTimeout)
	case <-ctx.Done():
		p.logger.Warn("stop cancelled, killing driver", "pid", proc.Pid, "error", ctx.Err())
	}
	return p.kill(proc, done)
}

func (p *supervisor) kill(proc *os.Process, done <-chan struct{}) StopMode {
	if err := killProcess(proc); err != nil && !isProcessGone(err) {
		p.logger.Warn("killing driver", "pid", proc.Pid, "error", err)
	}
	select {
	case <-done:
	case <-time.After(killGrace):
		p.logger.Error("driver still running after kill", "pid", proc.Pid)
	}
	return StopForced
}

func (p *supervisor) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// reclaim runs when the owning Service is garbage collected without Stop.
func (p *supervisor) reclaim() {
	p.mu.Lock()
	running := p.state == StateRunning
	p.mu.Unlock()
	if running {
		p.logger.Warn("service reclaimed without Stop, stopping driver")
	}
	p.stop(context.Background())
}

func (p *supervisor) info() ProcessInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := ProcessInfo{
		State:         p.state,
		StartedAt:     p.startedAt,
		StopRequested: p.stopRequested,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	if p.done != nil {
		select {
		case <-p.done:
			info.Exited = true
			info.ExitCode = p.exitCode
			if p.exitErr != nil {
				info.Error = p.exitErr.Error()
			}
		default:
		}
	}
	return info
}
