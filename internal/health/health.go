// Package health probes a freshly started driver until it accepts
// connections.
package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/benaskins/ghostwire/internal/wire"
	"golang.org/x/time/rate"
)

const (
	TypeTCP  = "tcp"
	TypeHTTP = "http"

	DefaultPath     = "/wd/hub/status"
	DefaultTimeout  = 2 * time.Second
	DefaultInterval = 100 * time.Millisecond

	maxBody = 1 << 20
)

// Config describes a readiness probe.
type Config struct {
	Type     string        // "tcp" | "http"
	Host     string        // default "localhost"
	Port     int           // required
	Path     string        // http only, default /wd/hub/status
	Timeout  time.Duration // per attempt
	Interval time.Duration // between attempts
}

func (c Config) withDefaults() Config {
	if c.Type == "" {
		c.Type = TypeTCP
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SingleCheck runs one probe and returns nil if the driver is ready.
func SingleCheck(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	switch cfg.Type {
	case TypeTCP:
		return checkTCP(ctx, cfg)
	case TypeHTTP:
		return checkHTTP(ctx, cfg)
	default:
		return fmt.Errorf("unknown health check type: %s", cfg.Type)
	}
}

// WaitHealthy probes until a check passes or ctx is done. Attempts are
// spaced by cfg.Interval.
func WaitHealthy(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	limiter := rate.NewLimiter(rate.Every(cfg.Interval), 1)

	var lastErr error
	for {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return fmt.Errorf("waiting for %s: %w", cfg.addr(), lastErr)
		}
		lastErr = SingleCheck(ctx, cfg)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("waiting for %s: %w", cfg.addr(), lastErr)
		}
	}
}

func checkTCP(ctx context.Context, cfg Config) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return fmt.Errorf("tcp connect failed: %w", err)
	}
	conn.Close()
	return nil
}

// checkHTTP requires a 2xx reply. A body that parses as a wire response
// must also report success.
func checkHTTP(ctx context.Context, cfg Config) error {
	url := "http://" + cfg.addr() + cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reading status body: %w", err)
	}
	if status, err := wire.Parse(body); err == nil {
		if err := wire.CheckResponse(status); err != nil {
			return fmt.Errorf("driver reported failure: %w", err)
		}
	}
	return nil
}
