// Package track watches per-node sequence numbers so the hub can tell
// ordinary notification loss apart from a rebooted or misbehaving node.
package track

import (
	"sync"

	"github.com/rushilpunu/cortex/internal/packet"
)

// Observation is the verdict on one received record.
type Observation struct {
	// First is true for the first record ever seen from this node.
	First bool
	// Gap is (seq - last_seq) mod 65536. 1 is the normal case; anything
	// larger means dropped notifications. 0 means a duplicate or a stuck
	// counter.
	Gap uint16
	// Lost is the count of records missed between the last one and this
	// one (Gap-1 when Gap > 1, else 0).
	Lost uint16
}

// Tracker keeps the last-seen sequence per node id. It is safe for
// concurrent use; BLE notification callbacks arrive on stack goroutines.
type Tracker struct {
	mu   sync.Mutex
	last map[uint8]uint16
	seen map[uint8]bool
}

func New() *Tracker {
	return &Tracker{
		last: make(map[uint8]uint16),
		seen: make(map[uint8]bool),
	}
}

// Observe records seq for nodeID and reports how it relates to the previous
// record. Loss is the expected occasional case with unreliable notify
// delivery; callers log it, nothing more.
func (t *Tracker) Observe(nodeID uint8, seq uint16) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seen[nodeID] {
		t.seen[nodeID] = true
		t.last[nodeID] = seq
		return Observation{First: true}
	}

	gap := packet.SeqGap(t.last[nodeID], seq)
	t.last[nodeID] = seq

	obs := Observation{Gap: gap}
	if gap > 1 {
		obs.Lost = gap - 1
	}
	return obs
}

// Forget drops state for a node, e.g. after it disconnects; the next record
// counts as First again rather than as a huge gap.
func (t *Tracker) Forget(nodeID uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, nodeID)
	delete(t.last, nodeID)
}
