package charlm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrCorpusTooShort is returned by Train when the corpus holds fewer
// characters than the model's window length, so not even the initial
// window can be formed.
var ErrCorpusTooShort = errors.New("charlm: corpus shorter than window length")

// Train builds the model from the text supplied by corpus. It slides a
// window of windowLength characters across the stream, recording for each
// window the frequency of the character that follows it, and finalizes
// every table's probabilities once the stream is exhausted.
//
// Train is meant to run exactly once per model. A second call does not
// reset the accumulated counts; it would pile new observations on top of
// the finalized tables and corrupt the distributions.
func (m *Model) Train(ctx context.Context, corpus io.Reader) error {
	r := bufio.NewReader(corpus)

	// Read the initial window.
	window := make([]rune, 0, m.windowLength)
	for len(window) < m.windowLength {
		c, _, err := r.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("reading initial window of %d: %w", m.windowLength, ErrCorpusTooShort)
			}
			return fmt.Errorf("reading corpus: %w", err)
		}
		window = append(window, c)
	}

	// Process the rest of the stream, one observation per character.
	var observations int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, _, err := r.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("reading corpus: %w", err)
		}

		key := string(window)
		table, ok := m.tables[key]
		if !ok {
			table = NewFreqTable()
			m.tables[key] = table
		}
		table.Update(c)
		observations++

		// Advance the window: drop the first character, append c.
		copy(window, window[1:])
		window[len(window)-1] = c
	}

	for _, table := range m.tables {
		table.Finalize()
	}

	m.logger.InfoContext(ctx, "Training completed",
		slog.Int("window_length", m.windowLength),
		slog.Int("windows", len(m.tables)),
		slog.Int64("observations", observations),
	)

	return nil
}
