package id

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit sortable identifier: [8 bytes unix ms][8 bytes sequence],
// both big-endian.
type ID [16]byte

// String returns the 32-char hex form.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Time returns the millisecond timestamp embedded in the ID.
func (i ID) Time() time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(i[0:8]))).UTC()
}

// Compare returns -1, 0, 1 based on byte-wise comparison.
func (i ID) Compare(other ID) int {
	for idx := 0; idx < 16; idx++ {
		if i[idx] < other[idx] {
			return -1
		}
		if i[idx] > other[idx] {
			return 1
		}
	}
	return 0
}

// Generator produces strictly increasing IDs within a process. It is used to
// name live subscriber connections so registries iterate in arrival order.
type Generator struct {
	mu       sync.Mutex
	nowMs    func() int64
	lastMs   int64
	sequence uint64
}

// NewGenerator creates a Generator on the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(func() int64 { return time.Now().UnixMilli() })
}

// NewGeneratorWithClock creates a Generator reading milliseconds from nowMs.
func NewGeneratorWithClock(nowMs func() int64) *Generator {
	return &Generator{nowMs: nowMs}
}

// Next returns a new ID. A regressing clock is pinned to the last seen
// millisecond; a sequence overflow waits for the next millisecond.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.nowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		if g.sequence == math.MaxUint64 {
			for ms <= g.lastMs {
				time.Sleep(time.Millisecond / 8)
				ms = g.nowMs()
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms))
	binary.BigEndian.PutUint64(out[8:16], g.sequence)
	return out
}
