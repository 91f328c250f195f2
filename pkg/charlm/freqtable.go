package charlm

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrIndexOutOfRange is returned by FreqTable.Get when the requested
// position is outside [0, Len()). Hitting it indicates a caller bug
// rather than a recoverable condition.
var ErrIndexOutOfRange = errors.New("charlm: index out of range")

// CharStat holds the statistics of a single character observed after one
// specific window: its raw occurrence count and, once Finalize has run,
// its probability and cumulative probability within the owning table.
type CharStat struct {
	Char    rune
	Count   int
	Prob    float64
	CumProb float64
}

// String renders the stat as "(char count prob cumprob)".
func (s *CharStat) String() string {
	return fmt.Sprintf("(%c %d %.4f %.4f)", s.Char, s.Count, s.Prob, s.CumProb)
}

// FreqTable is the ordered frequency table for one window. Characters seen
// for the first time are inserted at the front; repeated observations
// increment the existing entry in place. Order is part of the contract:
// cumulative probabilities and the sampling scan both walk it front to back.
//
// A table holds at most one entry per distinct character.
type FreqTable struct {
	entries []*CharStat
}

// NewFreqTable returns an empty table.
func NewFreqTable() *FreqTable {
	return &FreqTable{}
}

// Len returns the number of distinct characters in the table.
func (t *FreqTable) Len() int {
	return len(t.entries)
}

// Update records one observation of c: an existing entry has its count
// incremented, an unseen character gets a new entry with count 1 at the
// front of the table. The lookup is a linear scan; per-window alphabets
// are small enough that this is not worth an index.
func (t *FreqTable) Update(c rune) {
	if i := t.IndexOf(c); i >= 0 {
		t.entries[i].Count++
		return
	}
	t.entries = append(t.entries, nil)
	copy(t.entries[1:], t.entries)
	t.entries[0] = &CharStat{Char: c, Count: 1}
}

// IndexOf returns the position of the entry for c, or -1 if the table has
// no entry for it.
func (t *FreqTable) IndexOf(c rune) int {
	for i, e := range t.entries {
		if e.Char == c {
			return i
		}
	}
	return -1
}

// Get returns the entry at position i. It returns ErrIndexOutOfRange when
// i is negative or beyond the last entry.
func (t *FreqTable) Get(i int) (*CharStat, error) {
	if i < 0 || i >= len(t.entries) {
		return nil, fmt.Errorf("get entry %d of %d: %w", i, len(t.entries), ErrIndexOutOfRange)
	}
	return t.entries[i], nil
}

// Remove deletes the entry for c if present and reports whether a removal
// happened. The order of the remaining entries is preserved.
func (t *FreqTable) Remove(c rune) bool {
	i := t.IndexOf(c)
	if i < 0 {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// addCount merges n observations of c into the table. Unlike Update, an
// unseen character is appended at the back, so rebuilding a table from a
// serialized entry list reproduces the serialized order.
func (t *FreqTable) addCount(c rune, n int) {
	if i := t.IndexOf(c); i >= 0 {
		t.entries[i].Count += n
		return
	}
	t.entries = append(t.entries, &CharStat{Char: c, Count: n})
}

// ToArray returns a snapshot of all entries in table order. The snapshot
// copies the stat values, so later Update or Finalize calls do not
// write through to it.
func (t *FreqTable) ToArray() []CharStat {
	arr := make([]CharStat, len(t.entries))
	for i, e := range t.entries {
		arr[i] = *e
	}
	return arr
}

// All iterates over the entries in table order.
func (t *FreqTable) All() iter.Seq[*CharStat] {
	return t.From(0)
}

// From iterates over the entries in table order, starting at position i.
func (t *FreqTable) From(i int) iter.Seq[*CharStat] {
	return func(yield func(*CharStat) bool) {
		for ; i < len(t.entries); i++ {
			if !yield(t.entries[i]) {
				return
			}
		}
	}
}

// Finalize computes the probability and cumulative probability of every
// entry from the current counts. It only reads Count and overwrites the
// derived fields, so running it again without intervening updates is a
// no-op. The last entry's cumulative probability lands on 1.0 up to
// floating-point rounding.
func (t *FreqTable) Finalize() {
	if len(t.entries) == 0 {
		return
	}
	var total int
	for _, e := range t.entries {
		total += e.Count
	}
	var cum float64
	for _, e := range t.entries {
		e.Prob = float64(e.Count) / float64(total)
		cum += e.Prob
		e.CumProb = cum
	}
}

// String renders the table as "((c1 ...) (c2 ...))" in table order.
// An empty table renders as "()".
func (t *FreqTable) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range t.entries {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
