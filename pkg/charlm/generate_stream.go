package charlm

import (
	"context"
	"log/slog"
)

// GenerateStream works like Generate but delivers the continuation one
// character at a time on the returned channel, which is useful for
// drip-feeding long outputs. Only generated characters are emitted; the
// seed text is the caller's to print. The channel is closed once the text
// would have reached textLength, a dead-end window is hit, or the context
// is cancelled.
//
// The stream draws from the same model-owned random source as Generate,
// so interleaving the two from different goroutines is not supported.
func (m *Model) GenerateStream(ctx context.Context, initialText string, textLength int, opts ...GenerateOption) <-chan rune {
	options := defaultGenerateOptions(opts)

	out := make(chan rune)
	go func() {
		defer close(out)

		generated := []rune(initialText)
		if len(generated) < m.windowLength {
			return
		}

		for len(generated) < textLength {
			select {
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return
			default:
			}

			window := string(generated[len(generated)-m.windowLength:])
			table, ok := m.tables[window]
			if !ok {
				m.logger.DebugContext(ctx, "Generation stream terminated due to dead-end",
					slog.String("last_window", window),
					slog.Int("generated_length", len(generated)),
				)
				return
			}
			c := m.sample(table, options)
			select {
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return
			case out <- c:
			}
			generated = append(generated, c)
		}
	}()
	return out
}
