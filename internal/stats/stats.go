// Package stats periodically logs a snapshot of the stream and the process.
package stats

import (
	"context"
	"runtime"
	"time"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
)

// Source is the part of ws.Client a snapshot reads.
type Source interface {
	State() ws.State
	SessionID() string
	Registry() *ws.Registry
}

// Snapshot is one sample of stream and runtime figures.
type Snapshot struct {
	State         string
	Session       string
	Subscriptions int
	Pending       int
	HeapAllocMB   uint64
	NumGC         uint32
	Goroutines    int
}

// StreamStats logs a Snapshot every interval until its context ends.
type StreamStats struct {
	source   Source
	interval time.Duration
	logger   *logger.Logger
	done     chan struct{}
}

func NewStreamStats(source Source, interval time.Duration) *StreamStats {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StreamStats{
		source:   source,
		interval: interval,
		logger:   logger.WithField("component", "stream_stats"),
		done:     make(chan struct{}),
	}
}

func (s *StreamStats) Start(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logStats() // Log initial stats

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.logStats()
		}
	}
}

// Collect takes a snapshot.
func (s *StreamStats) Collect() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	reg := s.source.Registry()
	return Snapshot{
		State:         s.source.State().String(),
		Session:       s.source.SessionID(),
		Subscriptions: reg.Len(),
		Pending:       reg.Pending(),
		HeapAllocMB:   bToMb(m.HeapAlloc),
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
	}
}

func (s *StreamStats) logStats() {
	snap := s.Collect()
	s.logger.WithFields(logger.Fields{
		"state":         snap.State,
		"session":       snap.Session,
		"subscriptions": snap.Subscriptions,
		"pending":       snap.Pending,
		"heap_alloc_mb": snap.HeapAllocMB,
		"num_gc":        snap.NumGC,
		"goroutines":    snap.Goroutines,
	}).Info("Stream stats")
}

func (s *StreamStats) Done() <-chan struct{} {
	return s.done
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
