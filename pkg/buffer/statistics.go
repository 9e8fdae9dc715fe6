package buffer

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Statistics tracks buffer operation counters. All methods are safe for
// concurrent use.
type Statistics struct {
	writes      atomic.Int64
	reads       atomic.Int64
	overflows   atomic.Int64
	drops       atomic.Int64
	currentSize atomic.Int64
	maxSize     atomic.Int64
	createdAt   time.Time
}

func NewStatistics() *Statistics {
	return &Statistics{createdAt: time.Now()}
}

func (s *Statistics) Write()    { s.writes.Add(1) }
func (s *Statistics) Read()     { s.reads.Add(1) }
func (s *Statistics) Overflow() { s.overflows.Add(1) }
func (s *Statistics) Drop()     { s.drops.Add(1) }

// UpdateSize records the current buffer size and tracks the high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.currentSize.Store(size)

	for {
		max := s.maxSize.Load()
		if size <= max || s.maxSize.CompareAndSwap(max, size) {
			break
		}
	}
}

func (s *Statistics) Writes() int64      { return s.writes.Load() }
func (s *Statistics) Reads() int64       { return s.reads.Load() }
func (s *Statistics) Overflows() int64   { return s.overflows.Load() }
func (s *Statistics) Drops() int64       { return s.drops.Load() }
func (s *Statistics) CurrentSize() int64 { return s.currentSize.Load() }
func (s *Statistics) MaxSize() int64     { return s.maxSize.Load() }

// Uptime returns the duration since the statistics were created.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.createdAt)
}

// Throughput returns writes per second since creation.
func (s *Statistics) Throughput() float64 {
	uptime := s.Uptime().Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(s.Writes()) / uptime
}

// DropRate returns the fraction of writes that were dropped, in [0, 1].
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	drops := s.Drops()
	total := writes + drops
	if total == 0 {
		return 0
	}
	return float64(drops) / float64(total)
}

// Utilization returns current size as a fraction of the given capacity.
func (s *Statistics) Utilization(capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(s.CurrentSize()) / float64(capacity)
}

// Reset zeroes all counters and restarts the uptime clock.
func (s *Statistics) Reset() {
	s.writes.Store(0)
	s.reads.Store(0)
	s.overflows.Store(0)
	s.drops.Store(0)
	s.currentSize.Store(0)
	s.maxSize.Store(0)
	s.createdAt = time.Now()
}

// Summary returns a human-readable snapshot for logs.
func (s *Statistics) Summary() string {
	return fmt.Sprintf(
		"writes=%d reads=%d drops=%d overflows=%d size=%d max=%d throughput=%.1f/s drop_rate=%.2f%%",
		s.Writes(), s.Reads(), s.Drops(), s.Overflows(),
		s.CurrentSize(), s.MaxSize(), s.Throughput(), s.DropRate()*100,
	)
}
