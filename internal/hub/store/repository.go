package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rushilpunu/cortex/internal/packet"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

// Reading is one persisted record. Nil pointers mean the sensor reported the
// unavailable sentinel; NaN is stored as NULL, never as zero.
type Reading struct {
	NodeID      uint8
	Seq         uint16
	Time        time.Time
	MAC         string
	TMs         uint32
	TempC       *float64
	RHPct       *float64
	PressureHPa *float64
	Lux         *float64
	AccelG      *float64
	SoundDBFS   *float64
}

// ReadingRepository stores accepted wire records keyed by (node_id, ts, seq).
type ReadingRepository interface {
	InsertRecord(mac string, ts time.Time, rec *packet.Record) error
	GetLatest(nodeID uint8, limit int) ([]Reading, error)
	Count(nodeID uint8) (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ReadingRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertRecord(mac string, ts time.Time, rec *packet.Record) error {
	tsStr := ts.UTC().Format(time.RFC3339Nano)
	_, err := r.db.Exec(insertReadingSQL,
		rec.NodeID, rec.Seq, tsStr, mac, rec.TMs,
		nullIfNaN(rec.TempC),
		nullIfNaN(rec.RHPct),
		nullIfNaN(rec.PressureHPa),
		nullIfNaN(rec.Lux),
		nullIfNaN(rec.AccelG),
		nullIfNaN(rec.SoundDBFS),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetLatest(nodeID uint8, limit int) ([]Reading, error) {
	rows, err := r.db.Query(getLatestReadingsSQL, nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()

	var out []Reading
	for rows.Next() {
		var rec Reading
		var ts string
		if err := rows.Scan(&rec.NodeID, &rec.Seq, &ts, &rec.MAC, &rec.TMs,
			&rec.TempC, &rec.RHPct, &rec.PressureHPa, &rec.Lux, &rec.AccelG, &rec.SoundDBFS); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		rec.Time = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Count(nodeID uint8) (int, error) {
	var n int
	err := r.db.QueryRow(getReadingsCountSQL, nodeID).Scan(&n)
	return n, err
}

// nullIfNaN maps the wire sentinel to SQL NULL.
func nullIfNaN(v float32) interface{} {
	if math.IsNaN(float64(v)) {
		return nil
	}
	return float64(v)
}
