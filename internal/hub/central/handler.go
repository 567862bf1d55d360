package central

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rushilpunu/cortex/internal/hub/mqtt"
	"github.com/rushilpunu/cortex/internal/hub/store"
	"github.com/rushilpunu/cortex/internal/hub/track"
	"github.com/rushilpunu/cortex/internal/packet"
)

// RecordHandler is the receive pipeline: validate, decode, track sequence
// gaps, persist, publish. It is the mandatory validation contract applied to
// every received value before anything downstream may trust it.
type RecordHandler struct {
	repo    store.ReadingRepository
	pub     *mqtt.Publisher // optional, may be nil
	tracker *track.Tracker
	logger  *slog.Logger

	mu        sync.Mutex
	nodeByMAC map[string]uint8
}

func NewRecordHandler(repo store.ReadingRepository, pub *mqtt.Publisher, logger *slog.Logger) *RecordHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordHandler{
		repo:      repo,
		pub:       pub,
		tracker:   track.New(),
		logger:    logger,
		nodeByMAC: make(map[string]uint8),
	}
}

// HandleNotification processes one received characteristic value. Malformed
// buffers are rejected and logged, never persisted, and never crash the
// receiver. NaN fields are valid "no data" and flow through unchanged.
func (h *RecordHandler) HandleNotification(mac string, buf []byte) {
	rec, err := packet.Decode(buf)
	if err != nil {
		h.logger.Warn("hub: rejecting malformed record", "mac", mac, "len", len(buf), "error", err)
		return
	}

	h.mu.Lock()
	h.nodeByMAC[mac] = rec.NodeID
	h.mu.Unlock()

	obs := h.tracker.Observe(rec.NodeID, rec.Seq)
	if obs.Lost > 0 {
		// Notify delivery is not guaranteed; the occasional lost record is
		// expected, so this is informational, not an error.
		h.logger.Info("hub: dropped notifications",
			"node_id", rec.NodeID, "seq", rec.Seq, "lost", obs.Lost)
	}

	ts := time.Now()
	if err := h.repo.InsertRecord(mac, ts, rec); err != nil {
		h.logger.Error("hub: persist failed", "node_id", rec.NodeID, "seq", rec.Seq, "error", err)
		return
	}

	if h.pub != nil && h.pub.IsConnected() {
		if err := h.pub.PublishTelemetry(mqtt.FromRecord(rec, ts)); err != nil {
			h.logger.Warn("hub: publish failed", "node_id", rec.NodeID, "seq", rec.Seq, "error", err)
		}
	}

	h.logger.Debug("hub: record accepted",
		"mac", mac, "node_id", rec.NodeID, "seq", rec.Seq, "t_ms", rec.TMs)
}

// HandleDisconnect clears sequence state for the node behind mac, so its
// next record after a reconnect counts as a fresh start instead of a gap.
func (h *RecordHandler) HandleDisconnect(mac string) {
	h.mu.Lock()
	nodeID, ok := h.nodeByMAC[mac]
	delete(h.nodeByMAC, mac)
	h.mu.Unlock()

	if ok {
		h.tracker.Forget(nodeID)
	}
}
