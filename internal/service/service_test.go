package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
)

type fakeRecorder struct {
	mu      sync.Mutex
	started int
	failed  int
	stops   []StopMode
}

func (r *fakeRecorder) ProcessStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) ProcessStartFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *fakeRecorder) ProcessStopped(mode StopMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, mode)
}

func (r *fakeRecorder) stopModes() []StopMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.stops)
}

func newTestService(t *testing.T, cfg Config, opts ...Option) *Service {
	t.Helper()
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(t.TempDir(), "driver.log")
	}
	if cfg.Port == 0 {
		cfg.Port = 4444
	}
	s, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestServiceURL(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{Executable: "phantomjs", Port: 8910})
	if got := s.ServiceURL(); got != "http://localhost:8910/wd/hub" {
		t.Errorf("ServiceURL() = %q", got)
	}
	if got := s.BaseURL(); got != "http://localhost:8910" {
		t.Errorf("BaseURL() = %q", got)
	}
	if s.Info().State != StateNotStarted {
		t.Errorf("state = %v, want %v", s.Info().State, StateNotStarted)
	}
}

func TestURLHosts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 4444, "http://localhost:4444/wd/hub"},
		{"127.0.0.1", 1, "http://127.0.0.1:1/wd/hub"},
		{"::1", 9515, "http://[::1]:9515/wd/hub"},
	}
	for _, tt := range tests {
		if got := URL(tt.host, tt.port); got != tt.want {
			t.Errorf("URL(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()
	extra := []string{"--ignore-ssl-errors=true", "--load-images=false"}
	s := newTestService(t, Config{Executable: "/opt/phantomjs", Port: 5555, Args: extra})

	want := []string{"/opt/phantomjs", "--ignore-ssl-errors=true", "--load-images=false", "--webdriver=5555"}
	if got := s.Args(); !slices.Equal(got, want) {
		t.Errorf("Args() = %q, want %q", got, want)
	}

	// Later changes to the caller's slice must not leak in.
	extra[0] = "--mutated"
	if got := s.Args(); got[1] != "--ignore-ssl-errors=true" {
		t.Errorf("config was not copied: %q", got)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := map[string]Config{
		"missing executable": {Port: 4444, LogPath: filepath.Join(dir, "a.log")},
		"port zero":          {Executable: "phantomjs", LogPath: filepath.Join(dir, "b.log")},
		"port too large":     {Executable: "phantomjs", Port: 70000, LogPath: filepath.Join(dir, "c.log")},
		"log dir missing":    {Executable: "phantomjs", Port: 4444, LogPath: filepath.Join(dir, "nope", "d.log")},
	}
	for name, cfg := range tests {
		if _, err := New(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNewDefaultLogPath(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := New(Config{Executable: "phantomjs", Port: 4444})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop(context.Background())

	if s.LogPath() != DefaultLogPath {
		t.Errorf("LogPath() = %q, want %q", s.LogPath(), DefaultLogPath)
	}
	if _, err := os.Stat(DefaultLogPath); err != nil {
		t.Errorf("expected %s to be created: %v", DefaultLogPath, err)
	}
}

func TestNewTruncatesLog(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "driver.log")
	if err := os.WriteFile(path, []byte("stale output from a previous run\n"), 0644); err != nil {
		t.Fatal(err)
	}

	newTestService(t, Config{Executable: "phantomjs", LogPath: path})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("log size = %d, want 0", info.Size())
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	s := newTestService(t, Config{Executable: "phantomjs"}, WithRecorder(rec))
	if s.Info().StopRequested {
		t.Error("StopRequested set before Stop")
	}

	s.Stop(context.Background())

	if !s.Info().StopRequested {
		t.Error("StopRequested not set after Stop")
	}
	if s.sup.log != nil {
		t.Error("expected log to be closed")
	}
	if s.Info().State != StateStopped {
		t.Errorf("state = %v, want %v", s.Info().State, StateStopped)
	}
	if modes := rec.stopModes(); !slices.Equal(modes, []StopMode{StopNone}) {
		t.Errorf("stop modes = %v", modes)
	}
	if err := s.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop = %v, want ErrStopped", err)
	}
}

func TestStopAfterFailedStart(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	s := newTestService(t, Config{Executable: filepath.Join(t.TempDir(), "no-such-driver")}, WithRecorder(rec))

	if err := s.Start(); err == nil {
		t.Fatal("expected spawn error")
	}
	if rec.failed != 1 {
		t.Errorf("start failures = %d, want 1", rec.failed)
	}
	if s.Info().State != StateNotStarted {
		t.Errorf("state = %v, want %v", s.Info().State, StateNotStarted)
	}
	if s.Done() != nil {
		t.Error("Done() should be nil without a process")
	}

	s.Stop(context.Background())
	s.Stop(context.Background())

	if s.sup.log != nil {
		t.Error("expected log to be closed")
	}
	if modes := rec.stopModes(); !slices.Equal(modes, []StopMode{StopNone}) {
		t.Errorf("stop modes = %v, want [none]", modes)
	}
}

func TestCloseReturnsNil(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{Executable: "phantomjs"})
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestMultipleRecorders(t *testing.T) {
	t.Parallel()
	a, b := &fakeRecorder{}, &fakeRecorder{}
	s := newTestService(t, Config{Executable: "phantomjs"}, WithRecorder(a), WithRecorder(b))

	s.Stop(context.Background())

	for i, rec := range []*fakeRecorder{a, b} {
		if modes := rec.stopModes(); !slices.Equal(modes, []StopMode{StopNone}) {
			t.Errorf("recorder %d: stop modes = %v", i, modes)
		}
	}
}

func TestNoRecorder(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{Executable: filepath.Join(t.TempDir(), "no-such-driver")})
	if err := s.Start(); err == nil {
		t.Fatal("expected spawn error")
	}
	s.Stop(context.Background())
}
