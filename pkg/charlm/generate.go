package charlm

import (
	"context"
	"log/slog"
	"math"
	"sort"
)

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	temperature float64
	topK        int
}

// GenerateOption is a function that configures generation parameters. It's
// used as a variadic argument in Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithTemperature adjusts the randomness of character selection.
// A value of 1.0 is standard weighted random selection over the table's
// cumulative probabilities. Values > 1.0 increase randomness (making rare
// characters more likely), values < 1.0 decrease it. A value of 0 or less
// always picks the most frequent character.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the selection pool at each step to the k most
// frequent characters of the current table. A value of 0 disables Top-K
// sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

func defaultGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		temperature: 1.0,
		topK:        0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Generate extends initialText with characters sampled from the trained
// model until the text is textLength characters long. It returns
// initialText unchanged when it is shorter than the window length (there
// is no full window to start from) or already at least textLength long.
//
// Reaching a window the training corpus never produced is a normal
// termination, not an error: the text accumulated so far is returned.
// Generate does not mutate the model and may be called any number of
// times; with a seeded model the draws continue the model's single random
// sequence in call order.
func (m *Model) Generate(ctx context.Context, initialText string, textLength int, opts ...GenerateOption) (string, error) {
	options := defaultGenerateOptions(opts)

	generated := []rune(initialText)
	if len(generated) < m.windowLength {
		return initialText, nil
	}

	for len(generated) < textLength {
		if err := ctx.Err(); err != nil {
			return string(generated), err
		}
		window := string(generated[len(generated)-m.windowLength:])
		table, ok := m.tables[window]
		if !ok { // Dead end: the model has no continuation for this context.
			m.logger.DebugContext(ctx, "Generation terminated due to dead-end",
				slog.String("last_window", window),
				slog.Int("generated_length", len(generated)),
			)
			return string(generated), nil
		}
		generated = append(generated, m.sample(table, options))
	}

	m.logger.DebugContext(ctx, "Generation terminated by reaching text length",
		slog.Int("text_length", textLength),
		slog.Int("generated_length", len(generated)),
	)

	return string(generated), nil
}

// sample draws the next character from a finalized, non-empty table.
func (m *Model) sample(t *FreqTable, options *generateOptions) rune {
	// The plain case walks the precomputed cumulative probabilities with a
	// single uniform draw.
	if options.topK <= 0 && options.temperature == 1.0 {
		return t.charAbove(m.rng.Float64())
	}

	entries := t.entries

	// topK filtering
	if options.topK > 0 && options.topK < len(entries) {
		sorted := make([]*CharStat, len(entries))
		copy(sorted, entries)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Count > sorted[j].Count
		})
		entries = sorted[:options.topK]
	}

	// temperature selection
	if options.temperature <= 0 { // Deterministic
		next := entries[0]
		for _, e := range entries[1:] {
			if e.Count > next.Count {
				next = e
			}
		}
		return next.Char
	}

	if options.temperature == 1.0 { // Standard weighted random over counts
		var total int
		for _, e := range entries {
			total += e.Count
		}
		pick := m.rng.IntN(total)
		for _, e := range entries {
			pick -= e.Count
			if pick < 0 {
				return e.Char
			}
		}
		return entries[len(entries)-1].Char
	}

	// Temperature-based sampling
	logWeights := make([]float64, len(entries))
	maxLog := math.Inf(-1)
	for i, e := range entries {
		lw := math.Log(float64(e.Count)) / options.temperature
		logWeights[i] = lw
		if lw > maxLog {
			maxLog = lw
		}
	}
	var totalWeight float64
	weights := make([]float64, len(entries))
	for i, lw := range logWeights {
		w := math.Exp(lw - maxLog)
		weights[i] = w
		totalWeight += w
	}
	pick := m.rng.Float64() * totalWeight
	for i, e := range entries {
		pick -= weights[i]
		if pick < 0 {
			return e.Char
		}
	}
	return entries[len(entries)-1].Char
}

// charAbove returns the character of the first entry whose cumulative
// probability exceeds r. The last cumulative probability is 1.0, so for
// r < 1.0 some entry always matches; the last entry is a fallback against
// floating-point accumulation falling just short of r.
func (t *FreqTable) charAbove(r float64) rune {
	for e := range t.All() {
		if e.CumProb > r {
			return e.Char
		}
	}
	return t.entries[len(t.entries)-1].Char
}
