package charlm

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
)

// Model is a fixed-order character-level Markov language model. It maps
// every window of windowLength consecutive characters seen during training
// to the frequency table of the characters that followed it.
//
// A Model is not safe for concurrent use: train once, then generate from a
// single goroutine, or give each goroutine its own instance.
type Model struct {
	windowLength int
	tables       map[string]*FreqTable
	rng          *rand.Rand
	logger       *slog.Logger
}

// NewModel creates a model with the given window length and an unseeded
// random source. Repeated generation runs will produce different texts.
func NewModel(windowLength int) (*Model, error) {
	return NewSeededModel(windowLength, rand.Uint64())
}

// NewSeededModel creates a model with the given window length and a fixed
// random seed. Two models built with the same seed and trained on the same
// corpus generate identical texts, which makes runs reproducible.
func NewSeededModel(windowLength int, seed uint64) (*Model, error) {
	if windowLength < 1 {
		return nil, fmt.Errorf("charlm: window length must be positive, got %d", windowLength)
	}
	return &Model{
		windowLength: windowLength,
		tables:       make(map[string]*FreqTable),
		rng:          rand.New(rand.NewPCG(seed, seed)),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// WindowLength returns the window length the model was constructed with.
func (m *Model) WindowLength() int {
	return m.windowLength
}

// Table returns the frequency table for a window and whether the window
// was observed during training.
func (m *Model) Table(window string) (*FreqTable, bool) {
	t, ok := m.tables[window]
	return t, ok
}

// SetLogger sets the logger for the model. By default, all logs are
// discarded. Providing a `log/slog.Logger` enables logging for training,
// generation, and pruning.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Dump writes a debug rendering of the model to w: one line per window,
// showing the window key and its frequency table in table order. Windows
// are sorted so the output is stable across runs. This is a human-readable
// form, not a persistence format; use Export or a Store for that.
func (m *Model) Dump(w io.Writer) error {
	keys := make([]string, 0, len(m.tables))
	for k := range m.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s : %s\n", k, m.tables[k]); err != nil {
			return fmt.Errorf("dumping model: %w", err)
		}
	}
	return nil
}
