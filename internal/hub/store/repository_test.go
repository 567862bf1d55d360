package store

import (
	"database/sql"
	"math"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rushilpunu/cortex/internal/packet"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	// Running again must be a no-op, not an error.
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("applied migrations: got %d, want 1", n)
	}
}

func TestInsertRecord_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	rec := &packet.Record{
		NodeID:      1,
		Seq:         42,
		TMs:         123456,
		TempC:       21.5,
		RHPct:       45.0,
		PressureHPa: 1013.25,
		Lux:         300.0,
		AccelG:      1.0,
		SoundDBFS:   float32(math.NaN()),
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.InsertRecord("AA:BB:CC:DD:EE:FF", ts, rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	got, err := repo.GetLatest(1, 10)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetLatest: got %d readings, want 1", len(got))
	}
	r := got[0]
	if r.NodeID != 1 || r.Seq != 42 || r.TMs != 123456 {
		t.Errorf("header: node=%d seq=%d t_ms=%d", r.NodeID, r.Seq, r.TMs)
	}
	if r.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("MAC: got %q", r.MAC)
	}
	if !r.Time.Equal(ts) {
		t.Errorf("Time: got %v, want %v", r.Time, ts)
	}
	if r.TempC == nil || *r.TempC != 21.5 {
		t.Errorf("TempC: got %v, want 21.5", r.TempC)
	}
	if r.PressureHPa == nil || *r.PressureHPa != 1013.25 {
		t.Errorf("PressureHPa: got %v", r.PressureHPa)
	}
	// NaN must persist as NULL, not zero.
	if r.SoundDBFS != nil {
		t.Errorf("SoundDBFS: got %v, want NULL", *r.SoundDBFS)
	}
}

func TestInsertRecord_AllNaN(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	nan := float32(math.NaN())
	rec := &packet.Record{
		NodeID: 3, Seq: 0, TMs: 10,
		TempC: nan, RHPct: nan, PressureHPa: nan, Lux: nan, AccelG: nan, SoundDBFS: nan,
	}
	if err := repo.InsertRecord("mac", time.Now(), rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	got, err := repo.GetLatest(3, 1)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d readings", len(got))
	}
	r := got[0]
	for name, p := range map[string]*float64{
		"TempC": r.TempC, "RHPct": r.RHPct, "PressureHPa": r.PressureHPa,
		"Lux": r.Lux, "AccelG": r.AccelG, "SoundDBFS": r.SoundDBFS,
	} {
		if p != nil {
			t.Errorf("%s: got %v, want NULL", name, *p)
		}
	}
}

func TestGetLatest_OrderAndLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := &packet.Record{NodeID: 1, Seq: uint16(i), TMs: uint32(i * 200), TempC: float32(i)}
		if err := repo.InsertRecord("mac", base.Add(time.Duration(i)*time.Second), rec); err != nil {
			t.Fatalf("InsertRecord %d: %v", i, err)
		}
	}

	got, err := repo.GetLatest(1, 2)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d readings, want 2", len(got))
	}
	// Newest first.
	if got[0].Seq != 4 || got[1].Seq != 3 {
		t.Errorf("order: got seqs %d, %d, want 4, 3", got[0].Seq, got[1].Seq)
	}
}

func TestGetLatest_NodesAreSeparate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	ts := time.Now()
	_ = repo.InsertRecord("mac-a", ts, &packet.Record{NodeID: 1, Seq: 1, TempC: 20})
	_ = repo.InsertRecord("mac-b", ts, &packet.Record{NodeID: 2, Seq: 9, TempC: 25})

	got, err := repo.GetLatest(2, 10)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if len(got) != 1 || got[0].Seq != 9 {
		t.Fatalf("node 2 readings: %+v", got)
	}

	n, err := repo.Count(1)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("node 1 count: got %d, want 1", n)
	}
}

func TestCount_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	n, err := repo.Count(99)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("count: got %d, want 0", n)
	}
}

var _ ReadingRepository = (*repositoryImpl)(nil)
