package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
)

// Sweeper periodically evicts aircraft that have gone silent.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	threshold time.Duration

	clock   func() time.Time
	logger  *slog.Logger
	onEvict func([]adsb.Identity)
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithClock sets the time source used for eviction decisions.
func WithClock(clock func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.clock = clock
	}
}

// WithLogger sets the logger for eviction events.
func WithLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithEvictHook registers a function called with every non-empty batch of
// evicted identities.
func WithEvictHook(fn func([]adsb.Identity)) SweeperOption {
	return func(s *Sweeper) {
		s.onEvict = fn
	}
}

// NewSweeper creates a Sweeper evicting aircraft silent for longer than
// threshold every interval.
func NewSweeper(store *Store, interval, threshold time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:     store,
		interval:  interval,
		threshold: threshold,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.threshold <= 0 {
		s.threshold = store.Options().StaleAfter
	}
	return s
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs a single eviction pass and returns the evicted identities.
func (s *Sweeper) Sweep() []adsb.Identity {
	evicted := s.store.Evict(s.clock(), s.threshold)
	if len(evicted) == 0 {
		return nil
	}

	for _, id := range evicted {
		s.logger.Debug("aircraft evicted", "icao", id.String())
	}
	s.logger.Info("sweep complete", "evicted", len(evicted), "tracked", s.store.Len())

	if s.onEvict != nil {
		s.onEvict(evicted)
	}
	return evicted
}
