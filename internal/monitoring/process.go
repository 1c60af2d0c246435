package monitoring

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a point-in-time view of the API process.
type ProcessStats struct {
	RSSBytes   uint64    `json:"rssBytes"`
	CPUPercent float64   `json:"cpuPercent"`
	Goroutines int       `json:"goroutines"`
	SampledAt  time.Time `json:"sampledAt"`
}

// ProcessSampler reads resource usage of the current process and keeps the
// most recent sample for the health endpoint.
type ProcessSampler struct {
	proc *process.Process

	mu     sync.RWMutex
	latest ProcessStats
	ok     bool
}

// NewProcessSampler attaches to the running process.
func NewProcessSampler() (*ProcessSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open process handle: %w", err)
	}
	return &ProcessSampler{proc: p}, nil
}

// Sample takes a fresh reading and stores it as the latest one.
func (s *ProcessSampler) Sample(ctx context.Context) (ProcessStats, error) {
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("failed to read memory info: %w", err)
	}
	cpu, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}

	stats := ProcessStats{
		RSSBytes:   mem.RSS,
		CPUPercent: cpu,
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.latest, s.ok = stats, true
	s.mu.Unlock()
	return stats, nil
}

// Latest returns the last sample, if any was taken.
func (s *ProcessSampler) Latest() (ProcessStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}
