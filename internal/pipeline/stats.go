package pipeline

import (
	"sync"
	"time"
)

// Stats tracks cumulative pipeline counters. It is safe for concurrent use;
// the collector, scheduler, and the periodic stats logger all touch it.
type Stats struct {
	mu              sync.Mutex
	startTime       time.Time
	cyclesCompleted int
	offersProcessed int
	errorsTotal     int
	lastCycleTime   time.Time
	lastCycleTook   time.Duration
	lastStatsAt     time.Time
}

// NewStats creates a Stats anchored at now.
func NewStats(now time.Time) *Stats {
	return &Stats{startTime: now, lastStatsAt: now}
}

// AddCycle records one completed cycle and its duration.
func (s *Stats) AddCycle(took time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cyclesCompleted++
	s.lastCycleTime = at
	s.lastCycleTook = took
}

// AddOffers adds to the processed-offer counter.
func (s *Stats) AddOffers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offersProcessed += n
}

// AddErrors adds to the error counter.
func (s *Stats) AddErrors(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorsTotal += n
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime          time.Duration
	CyclesCompleted int
	OffersProcessed int
	ErrorsTotal     int
	AvgCycleTime    time.Duration
	LastCycleTime   time.Time
	LastCycleTook   time.Duration
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	uptime := now.Sub(s.startTime)
	var avg time.Duration
	if s.cyclesCompleted > 0 {
		avg = uptime / time.Duration(s.cyclesCompleted)
	}
	return Snapshot{
		Uptime:          uptime,
		CyclesCompleted: s.cyclesCompleted,
		OffersProcessed: s.offersProcessed,
		ErrorsTotal:     s.errorsTotal,
		AvgCycleTime:    avg,
		LastCycleTime:   s.lastCycleTime,
		LastCycleTook:   s.lastCycleTook,
	}
}

// ShouldLog reports whether the periodic stats line is due, and if so moves
// the marker forward.
func (s *Stats) ShouldLog(interval time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval <= 0 || now.Sub(s.lastStatsAt) < interval {
		return false
	}
	s.lastStatsAt = now
	return true
}
