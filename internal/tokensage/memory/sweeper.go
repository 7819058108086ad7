package memory

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs when the
// operator does not configure one.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically evicts expired contexts and idle sessions from a
// Store. It runs independently of any single request and is safe to run
// concurrently with ordinary reads and writes. The store only guarantees
// eventual removal, which is all the pipeline needs.
type Sweeper struct {
	store    Store
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a Sweeper over store. A non-positive interval falls back
// to DefaultSweepInterval.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop. Call Stop to end it.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop terminates the sweep loop and waits for it to exit. Safe to call more
// than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("memory: sweeper started", "interval", s.interval)
	for {
		select {
		case <-s.stop:
			slog.Info("memory: sweeper stopped")
			return
		case now := <-ticker.C:
			contexts, sessions := s.store.Sweep(now)
			if contexts > 0 || sessions > 0 {
				slog.Info("memory: sweep evicted entries",
					"contexts", contexts, "sessions", sessions)
			}
		}
	}
}
