package procstat

import (
	"context"
	"os"
	"testing"
)

func TestSampleSelf(t *testing.T) {
	u, err := Sample(context.Background(), os.Getpid())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if u.RSSBytes == 0 {
		t.Error("expected non-zero RSS")
	}
	if u.Threads < 1 {
		t.Errorf("threads = %d, want at least 1", u.Threads)
	}
	if u.CPUPercent < 0 {
		t.Errorf("cpu = %v, want >= 0", u.CPUPercent)
	}
}

func TestSampleMissingProcess(t *testing.T) {
	// PIDs are bounded well below this on every supported platform.
	if _, err := Sample(context.Background(), 1<<30); err == nil {
		t.Error("expected error for a nonexistent pid")
	}
}
