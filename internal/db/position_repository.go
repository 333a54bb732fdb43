package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
)

// PositionRepository writes the tracked aircraft and their resolved
// positions.
type PositionRepository struct {
	db *DB

	mu   sync.Mutex
	last map[adsb.Identity]adsb.Position
}

// NewPositionRepository creates a new repository.
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{
		db:   db,
		last: make(map[adsb.Identity]adsb.Position),
	}
}

// Record upserts one aircraft row per entry and appends a history row for
// every aircraft whose resolved position changed since the last call. It
// returns the number of history rows written. The batch is one transaction.
func (r *PositionRepository) Record(ctx context.Context, aircraft []adsb.Aircraft, now time.Time) (int, error) {
	if len(aircraft) == 0 {
		return 0, nil
	}
	now = now.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO aircraft (
			icao, latitude, longitude, altitude_ft, messages, position_count,
			first_seen, last_seen, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (icao) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude_ft = EXCLUDED.altitude_ft,
			messages = EXCLUDED.messages,
			position_count = aircraft.position_count + EXCLUDED.position_count,
			last_seen = EXCLUDED.last_seen,
			last_updated = EXCLUDED.last_updated`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare aircraft upsert: %w", err)
	}
	defer upsert.Close()

	insert, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO aircraft_positions (icao, timestamp, latitude, longitude, altitude_ft)
		VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare position insert: %w", err)
	}
	defer insert.Close()

	written := make(map[adsb.Identity]adsb.Position)
	for _, ac := range aircraft {
		var lat, lon sql.NullFloat64
		var appended int64

		if ac.Position != nil {
			lat = sql.NullFloat64{Float64: ac.Position.Latitude, Valid: true}
			lon = sql.NullFloat64{Float64: ac.Position.Longitude, Valid: true}

			// Skip history rows for aircraft that have not moved
			if prev, ok := r.last[ac.ICAO]; !ok || !positionsEqual(*ac.Position, prev) {
				_, err := insert.ExecContext(ctx,
					ac.ICAO.String(), now, ac.Position.Latitude, ac.Position.Longitude,
					nullAltitude(ac.Position.Altitude, ac.Position.HasAltitude),
				)
				if err != nil {
					return 0, fmt.Errorf("failed to insert position for %s: %w", ac.ICAO, err)
				}
				written[ac.ICAO] = *ac.Position
				appended = 1
			}
		}

		_, err := upsert.ExecContext(ctx,
			ac.ICAO.String(), lat, lon,
			nullAltitude(ac.Altitude, ac.HasAltitude),
			ac.Messages, appended,
			ac.FirstSeen.UTC(), ac.LastSeen.UTC(), now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert aircraft %s: %w", ac.ICAO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	for id, pos := range written {
		r.last[id] = pos
	}
	return len(written), nil
}

// Forget drops the change-detection state of evicted aircraft, so their
// next position is always written.
func (r *PositionRepository) Forget(ids []adsb.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.last, id)
	}
}

// PositionRecord is one stored history row.
type PositionRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lon"`
	Altitude    int       `json:"altitude,omitempty"`
	HasAltitude bool      `json:"has_altitude"`
}

// GetPositionHistory returns the positions of one aircraft since the given
// time, oldest first.
func (r *PositionRepository) GetPositionHistory(ctx context.Context, id adsb.Identity, since time.Time) ([]PositionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind(`SELECT timestamp, latitude, longitude, altitude_ft
		 FROM aircraft_positions
		 WHERE icao = ? AND timestamp >= ?
		 ORDER BY timestamp ASC`),
		id.String(), since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionRecord
	for rows.Next() {
		var p PositionRecord
		var alt sql.NullInt64
		if err := rows.Scan(&p.Timestamp, &p.Latitude, &p.Longitude, &alt); err != nil {
			return nil, err
		}
		if alt.Valid {
			p.Altitude = int(alt.Int64)
			p.HasAltitude = true
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

func nullAltitude(alt int, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(alt), Valid: ok}
}

// positionsEqual reports whether two fixes are the same to about 0.1 m
// horizontally and one foot vertically.
func positionsEqual(a, b adsb.Position) bool {
	const positionTolerance = 0.000001

	return math.Abs(a.Latitude-b.Latitude) <= positionTolerance &&
		math.Abs(a.Longitude-b.Longitude) <= positionTolerance &&
		a.HasAltitude == b.HasAltitude &&
		a.Altitude == b.Altitude
}
