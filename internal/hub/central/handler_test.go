package central

import (
	"math"
	"testing"
	"time"

	"github.com/rushilpunu/cortex/internal/frame"
	"github.com/rushilpunu/cortex/internal/hub/store"
	"github.com/rushilpunu/cortex/internal/packet"
)

type fakeRepo struct {
	inserted []store.Reading
	err      error
}

func (f *fakeRepo) InsertRecord(mac string, ts time.Time, rec *packet.Record) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, store.Reading{
		NodeID: rec.NodeID,
		Seq:    rec.Seq,
		Time:   ts,
		MAC:    mac,
		TMs:    rec.TMs,
	})
	return nil
}

func (f *fakeRepo) GetLatest(nodeID uint8, limit int) ([]store.Reading, error) { return nil, nil }
func (f *fakeRepo) Count(nodeID uint8) (int, error)                            { return len(f.inserted), nil }

func encodeTestRecord(t *testing.T, nodeID uint8, seq uint16) []byte {
	t.Helper()
	enc, err := packet.NewEncoder(nodeID)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	f := frame.New()
	f.TempC = 20
	var buf []byte
	for i := uint16(0); ; i++ {
		buf = enc.Encode(f, 100)
		if i == seq {
			break
		}
	}
	return buf
}

func TestHandleNotification_AcceptsValidRecord(t *testing.T) {
	repo := &fakeRepo{}
	h := NewRecordHandler(repo, nil, nil)

	h.HandleNotification("mac-1", encodeTestRecord(t, 1, 0))

	if len(repo.inserted) != 1 {
		t.Fatalf("inserted: got %d, want 1", len(repo.inserted))
	}
	if repo.inserted[0].NodeID != 1 || repo.inserted[0].Seq != 0 {
		t.Errorf("inserted record: %+v", repo.inserted[0])
	}
}

func TestHandleNotification_RejectsWrongLength(t *testing.T) {
	repo := &fakeRepo{}
	h := NewRecordHandler(repo, nil, nil)

	h.HandleNotification("mac-1", make([]byte, 20))
	h.HandleNotification("mac-1", append(encodeTestRecord(t, 1, 0), 0))

	if len(repo.inserted) != 0 {
		t.Fatalf("malformed buffers persisted: %d", len(repo.inserted))
	}
}

func TestHandleNotification_RejectsBadMagic(t *testing.T) {
	repo := &fakeRepo{}
	h := NewRecordHandler(repo, nil, nil)

	buf := encodeTestRecord(t, 1, 0)
	copy(buf, "XXXX")
	h.HandleNotification("mac-1", buf)

	if len(repo.inserted) != 0 {
		t.Fatal("record with bad magic was persisted")
	}
}

func TestHandleNotification_NaNIsNotAnError(t *testing.T) {
	repo := &fakeRepo{}
	h := NewRecordHandler(repo, nil, nil)

	enc, _ := packet.NewEncoder(4)
	buf := enc.Encode(frame.New(), 50) // every field NaN
	rec, err := packet.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !math.IsNaN(float64(rec.TempC)) {
		t.Fatal("test setup: expected NaN frame")
	}

	h.HandleNotification("mac-4", buf)
	if len(repo.inserted) != 1 {
		t.Fatalf("all-NaN record rejected; inserted=%d", len(repo.inserted))
	}
}

func TestHandleDisconnect_ResetsSequenceTracking(t *testing.T) {
	repo := &fakeRepo{}
	h := NewRecordHandler(repo, nil, nil)

	h.HandleNotification("mac-1", encodeTestRecord(t, 1, 0))
	h.HandleDisconnect("mac-1")

	// After a reconnect the node may have rebooted; its seq restarts at 0
	// and must not be treated as a 65535-record gap.
	obs := h.tracker.Observe(1, 0)
	if !obs.First {
		t.Error("post-disconnect record should count as first")
	}
}
