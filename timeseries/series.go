// Package timeseries provides the append-only, timestamp-indexed storage for
// the measured channels of an acquisition run.
package timeseries

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// initialCapacity pre-sizes the per-channel buffers so a typical run never
// pays more than a handful of growth copies.
const initialCapacity = 256

// Set holds parallel append-only channels sharing one ordered timestamp
// sequence: index i of every channel corresponds to the i-th appended sample.
// Equal channel lengths and non-decreasing timestamps hold by construction;
// the appending loop is synchronous and Append never re-validates them.
//
// A Set supports one writer. Reading Table while a background writer is
// active returns a consistent snapshot but is not guaranteed to reflect the
// very latest sample.
type Set struct {
	mu         sync.RWMutex
	indexLabel string
	channels   []string
	timestamps []float64
	values     [][]float64
}

// NewSet creates a set with the given index label and channel names. Column
// order in the rendered table follows the declaration order.
func NewSet(indexLabel string, channels ...string) *Set {
	s := &Set{
		indexLabel: indexLabel,
		channels:   append([]string(nil), channels...),
		timestamps: make([]float64, 0, initialCapacity),
		values:     make([][]float64, len(channels)),
	}
	for i := range s.values {
		s.values[i] = make([]float64, 0, initialCapacity)
	}
	return s
}

// Append records one sample across all channels. The caller guarantees
// timestamps arrive in non-decreasing order.
func (s *Set) Append(timestamp float64, values ...float64) error {
	if len(values) != len(s.channels) {
		return fmt.Errorf("expected %d channel values, got %d", len(s.channels), len(values))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.timestamps = append(s.timestamps, timestamp)
	for i, v := range values {
		s.values[i] = append(s.values[i], v)
	}
	return nil
}

// Len returns the number of appended samples.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.timestamps)
}

// Channels returns the declared channel names in column order.
func (s *Set) Channels() []string {
	return append([]string(nil), s.channels...)
}

// Table is a row-aligned snapshot of a Set keyed by timestamp. Columns
// preserve channel declaration order; a channel that never received a value
// is absent rather than zero-filled, so callers cannot mistake "no reading
// yet" for a reading of zero.
type Table struct {
	IndexLabel string
	Timestamps []float64
	Columns    *orderedmap.OrderedMap[string, []float64]
}

// Rows returns the number of timestamp rows.
func (t *Table) Rows() int { return len(t.Timestamps) }

// Table renders a snapshot of the set. The returned table owns copies of the
// data and stays valid after further appends.
func (s *Set) Table() *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl := &Table{
		IndexLabel: s.indexLabel,
		Timestamps: append([]float64(nil), s.timestamps...),
		Columns:    orderedmap.New[string, []float64](),
	}
	for i, name := range s.channels {
		if len(s.values[i]) == 0 {
			continue
		}
		tbl.Columns.Set(name, append([]float64(nil), s.values[i]...))
	}
	return tbl
}
