// Package packet implements the CTX1 wire record: the fixed 44-byte
// little-endian telemetry packet a node notifies to the hub.
//
// Layout (offsets in bytes):
//
//	0  magic        "CTX1"
//	4  node_id      uint8, 0-254
//	5  reserved     must be 0
//	6  seq          uint16, wraps 65535 -> 0
//	8  t_ms         uint32, device uptime at encode time
//	12 temp_c       float32
//	16 rh_pct       float32
//	20 pressure_hpa float32
//	24 lux          float32
//	28 accel_g      float32
//	32 sound_dbfs   float32
//	36 padding      8 zero bytes, reserved
//
// Every multi-byte field is little-endian regardless of host byte order.
// NaN floats are legitimate "sensor unavailable" values, not errors.
package packet

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rushilpunu/cortex/internal/frame"
)

// Size is the exact wire size of a record. Receivers must reject anything else.
const Size = 44

// Magic identifies a valid record.
const Magic = "CTX1"

// Record is a decoded wire record.
type Record struct {
	NodeID      uint8
	Seq         uint16
	TMs         uint32
	TempC       float32
	RHPct       float32
	PressureHPa float32
	Lux         float32
	AccelG      float32
	SoundDBFS   float32
}

// Encoder builds wire records for one node. It owns the sequence counter:
// the counter starts at 0 at boot, increments once per encoded record and
// wraps at 2^16. Nothing else may touch it.
type Encoder struct {
	nodeID uint8
	seq    uint16
}

// NewEncoder returns an encoder for the given node id (0-254).
func NewEncoder(nodeID uint8) (*Encoder, error) {
	if nodeID > 254 {
		return nil, fmt.Errorf("node id %d out of range (0-254)", nodeID)
	}
	return &Encoder{nodeID: nodeID}, nil
}

// Seq returns the sequence number the next encoded record will carry.
func (e *Encoder) Seq() uint16 { return e.seq }

// Encode serializes the current frame into a fresh 44-byte record and
// advances the sequence counter. uptimeMS is the device uptime at encode
// time, not at sample time.
func (e *Encoder) Encode(f *frame.Frame, uptimeMS uint32) []byte {
	buf := make([]byte, Size)
	copy(buf[0:4], Magic)
	buf[4] = e.nodeID
	buf[5] = 0
	binary.LittleEndian.PutUint16(buf[6:8], e.seq)
	binary.LittleEndian.PutUint32(buf[8:12], uptimeMS)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(f.TempC))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(f.RHPct))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(f.PressureHPa))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(f.Lux))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(f.AccelG))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(f.SoundDBFS))
	// buf[36:44] stays zero: reserved for future fields.

	e.seq++ // uint16 wraps naturally at 65535
	return buf
}

// Validate checks the framing rules a receiver must apply before trusting a
// buffer: exact length and magic. It deliberately does not inspect field
// values; NaN is valid data.
func Validate(buf []byte) error {
	if len(buf) != Size {
		return fmt.Errorf("record length %d, want %d", len(buf), Size)
	}
	if string(buf[0:4]) != Magic {
		return fmt.Errorf("bad magic %q", buf[0:4])
	}
	return nil
}

// Decode validates and parses a received buffer.
func Decode(buf []byte) (*Record, error) {
	if err := Validate(buf); err != nil {
		return nil, err
	}
	return &Record{
		NodeID:      buf[4],
		Seq:         binary.LittleEndian.Uint16(buf[6:8]),
		TMs:         binary.LittleEndian.Uint32(buf[8:12]),
		TempC:       math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
		RHPct:       math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
		PressureHPa: math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])),
		Lux:         math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28])),
		AccelG:      math.Float32frombits(binary.LittleEndian.Uint32(buf[28:32])),
		SoundDBFS:   math.Float32frombits(binary.LittleEndian.Uint32(buf[32:36])),
	}, nil
}

// SeqGap returns (cur - prev) mod 65536. A gap of 1 is the normal case; a
// larger gap means notifications were dropped in between.
func SeqGap(prev, cur uint16) uint16 {
	return cur - prev // unsigned subtraction is already mod 2^16
}
