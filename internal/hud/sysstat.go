package hud

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Load is a host resource snapshot in percent.
type Load struct {
	CPU float64
	Mem float64
	OK  bool
}

// LoadSampler polls host CPU and memory use no more than once per interval,
// so it can be called every frame.
type LoadSampler struct {
	interval time.Duration

	mu     sync.Mutex
	last   time.Time
	cached Load

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
}

// NewLoadSampler returns a sampler backed by gopsutil.
func NewLoadSampler(interval time.Duration) *LoadSampler {
	return &LoadSampler{
		interval: interval,
		cpuPercent: func() (float64, error) {
			// Zero interval compares against the previous call.
			v, err := cpu.Percent(0, false)
			if err != nil || len(v) == 0 {
				return 0, err
			}
			return v[0], nil
		},
		memPercent: func() (float64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.UsedPercent, nil
		},
	}
}

// Sample returns the latest snapshot, refreshing it when stale.
func (s *LoadSampler) Sample(now time.Time) Load {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		return s.cached
	}
	s.last = now

	c, cerr := s.cpuPercent()
	m, merr := s.memPercent()
	s.cached = Load{CPU: c, Mem: m, OK: cerr == nil && merr == nil}
	return s.cached
}
