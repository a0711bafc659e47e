package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// ResourceProbe reads process-level resource usage. Substitutable in
// tests and on platforms without procfs.
type ResourceProbe interface {
	// CPUPercent returns the process CPU usage since the previous call,
	// as a percentage of one core.
	CPUPercent() (float64, error)

	// MemoryUsedPercent returns system memory usage as a percentage.
	MemoryUsedPercent() (float64, error)
}

// ProcProbe implements ResourceProbe using /proc.
type ProcProbe struct {
	fs   procfs.FS
	proc procfs.Proc

	mu         sync.Mutex
	lastCPU    float64
	lastSample time.Time
}

// NewProcProbe creates a probe for the current process.
func NewProcProbe() (*ProcProbe, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("opening procfs: %w", err)
	}
	proc, err := fs.Self()
	if err != nil {
		return nil, fmt.Errorf("reading self proc: %w", err)
	}
	return &ProcProbe{fs: fs, proc: proc}, nil
}

// CPUPercent computes CPU usage from the delta in consumed CPU time
// between calls. The first call establishes the baseline and returns 0.
func (p *ProcProbe) CPUPercent() (float64, error) {
	stat, err := p.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading proc stat: %w", err)
	}

	now := time.Now()
	cpu := stat.CPUTime()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastSample.IsZero() {
		p.lastCPU = cpu
		p.lastSample = now
		return 0, nil
	}

	wall := now.Sub(p.lastSample).Seconds()
	used := cpu - p.lastCPU
	p.lastCPU = cpu
	p.lastSample = now

	if wall <= 0 {
		return 0, nil
	}
	return used / wall * 100, nil
}

// MemoryUsedPercent reads system memory usage from /proc/meminfo.
func (p *ProcProbe) MemoryUsedPercent() (float64, error) {
	meminfo, err := p.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("reading meminfo: %w", err)
	}
	if meminfo.MemTotal == nil || meminfo.MemAvailable == nil || *meminfo.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo missing totals")
	}

	total := float64(*meminfo.MemTotal)
	available := float64(*meminfo.MemAvailable)
	return (total - available) / total * 100, nil
}
