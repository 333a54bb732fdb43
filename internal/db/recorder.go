package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
	"github.com/unklstewy/ads-btrack/pkg/config"
)

// CleanupInterval is how often the recorder prunes history.
const CleanupInterval = 10 * time.Minute

// Recorder periodically writes the live aircraft picture to the database.
type Recorder struct {
	db        *DB
	repo      *PositionRepository
	source    func() []adsb.Aircraft
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	// OnRecord, if set, receives the number of history rows of each batch.
	OnRecord func(n int)
}

// NewRecorder creates a recorder reading aircraft from source. A nil
// logger uses slog.Default.
func NewRecorder(db *DB, source func() []adsb.Aircraft, cfg config.DatabaseConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.RecordInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	retention := cfg.Retention()
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Recorder{
		db:        db,
		repo:      NewPositionRepository(db),
		source:    source,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Repository returns the repository the recorder writes through.
func (r *Recorder) Repository() *PositionRepository {
	return r.repo
}

// RecordOnce writes one batch, retrying on connection errors.
func (r *Recorder) RecordOnce(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := WithRetry(ctx, func() error {
		var err error
		n, err = r.repo.Record(ctx, r.source(), now)
		return err
	}, 2)
	if err != nil {
		return 0, err
	}
	if r.OnRecord != nil && n > 0 {
		r.OnRecord(n)
	}
	return n, nil
}

// Run records every interval and prunes history every CleanupInterval
// until ctx is cancelled. Write failures are logged, not returned.
func (r *Recorder) Run(ctx context.Context) error {
	record := time.NewTicker(r.interval)
	defer record.Stop()
	cleanup := time.NewTicker(CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-record.C:
			n, err := r.RecordOnce(ctx, now)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Warn("failed to record positions", "error", err)
				continue
			}
			r.logger.Debug("recorded positions", "rows", n)
		case <-cleanup.C:
			if err := r.db.CleanupOldData(ctx, r.retention); err != nil && ctx.Err() == nil {
				r.logger.Warn("failed to clean up history", "error", err)
			}
		}
	}
}
