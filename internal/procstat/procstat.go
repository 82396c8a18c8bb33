// Package procstat samples resource usage of a running driver process.
package procstat

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time view of one process.
type Usage struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"` // since process start
	Threads    int32   `json:"threads"`
	Children   int     `json:"children"`
}

// Sample reads the usage of pid. It fails if the process does not exist.
func Sample(ctx context.Context, pid int) (Usage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("process %d: %w", pid, err)
	}

	var u Usage
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory of process %d: %w", pid, err)
	}
	u.RSSBytes = mem.RSS

	if u.CPUPercent, err = p.CPUPercentWithContext(ctx); err != nil {
		return Usage{}, fmt.Errorf("cpu of process %d: %w", pid, err)
	}
	if u.Threads, err = p.NumThreadsWithContext(ctx); err != nil {
		return Usage{}, fmt.Errorf("threads of process %d: %w", pid, err)
	}

	// Listing children can need external tools (pgrep on Linux), so a
	// failure leaves the count at zero.
	if children, err := p.ChildrenWithContext(ctx); err == nil {
		u.Children = len(children)
	}
	return u, nil
}
