package charlm

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateBoundaries(t *testing.T) {
	m := newTrainedModel(t, 2, 42, "abcabcabc")
	ctx := context.Background()

	testCases := []struct {
		name       string
		initial    string
		textLength int
		want       string
	}{
		{"seed shorter than window", "a", 100, "a"},
		{"empty seed", "", 100, ""},
		{"seed already at length", "abcab", 5, "abcab"},
		{"seed longer than length", "abcabc", 3, "abcabc"},
		{"zero length", "ab", 0, "ab"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.Generate(ctx, tc.initial, tc.textLength)
			if err != nil {
				t.Fatalf("Generate() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Generate(%q, %d) = %q, want %q", tc.initial, tc.textLength, got, tc.want)
			}
		})
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	corpus := "the theremin then thickened the theme there and then, " +
		"and the thin theory thereafter thundered through the thicket."
	ctx := context.Background()

	m1 := newTrainedModel(t, 3, 99, corpus)
	m2 := newTrainedModel(t, 3, 99, corpus)

	out1, err := m1.Generate(ctx, "the", 80)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	out2, err := m2.Generate(ctx, "the", 80)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if out1 != out2 {
		t.Errorf("same seed produced different texts:\n%q\n%q", out1, out2)
	}
}

func TestGenerateFollowsObservedWindows(t *testing.T) {
	// "abcabcabc" with window length 2 only ever continues "ab"->c,
	// "bc"->a and "ca"->b, so generation from "ab" is fully determined.
	m := newTrainedModel(t, 2, 7, "abcabcabc")

	got, err := m.Generate(context.Background(), "ab", 5)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "abcab" {
		t.Errorf("Generate(\"ab\", 5) = %q, want %q", got, "abcab")
	}
}

func TestGenerateDeadEnd(t *testing.T) {
	// Training "ab" with window length 1 only populates window "a".
	// Generating from "b" hits an unknown window immediately; that is a
	// normal termination returning the accumulated text.
	m := newTrainedModel(t, 1, 3, "ab")

	got, err := m.Generate(context.Background(), "b", 10)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "b" {
		t.Errorf("Generate(\"b\", 10) = %q, want %q", got, "b")
	}
}

func TestGenerateDoesNotMutateModel(t *testing.T) {
	m := newTrainedModel(t, 1, 5, "aabab")
	before := m.Stats()

	for i := 0; i < 5; i++ {
		if _, err := m.Generate(context.Background(), "a", 20); err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
	}

	if after := m.Stats(); after != before {
		t.Errorf("model stats changed across generations: %+v -> %+v", before, after)
	}
}

func TestGenerateTemperatureZero(t *testing.T) {
	// With temperature 0 the most frequent continuation always wins:
	// after "a" the corpus has 'a' three times and 'b' twice.
	m := newTrainedModel(t, 1, 11, "aabaaab")

	got, err := m.Generate(context.Background(), "a", 6, WithTemperature(0))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "aaaaaa" {
		t.Errorf("Generate() with temperature 0 = %q, want %q", got, "aaaaaa")
	}
}

func TestGenerateTopK(t *testing.T) {
	// With k=1 the candidate pool is the single most frequent entry, so
	// the draw is forced even at temperature 1.
	m := newTrainedModel(t, 1, 13, "aabaaab")

	got, err := m.Generate(context.Background(), "a", 6, WithTopK(1))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "aaaaaa" {
		t.Errorf("Generate() with top-1 = %q, want %q", got, "aaaaaa")
	}
}

func TestCharAboveFallback(t *testing.T) {
	table := NewFreqTable()
	for _, c := range "ab" { // order: b, a
		table.Update(c)
	}
	table.Finalize()

	if got := table.charAbove(0.0); got != 'b' {
		t.Errorf("charAbove(0.0) = %q, want 'b'", got)
	}
	if got := table.charAbove(0.75); got != 'a' {
		t.Errorf("charAbove(0.75) = %q, want 'a'", got)
	}
	// r == 1.0 never happens with Float64, but the scan must still fall
	// back to the last entry instead of failing.
	if got := table.charAbove(1.0); got != 'a' {
		t.Errorf("charAbove(1.0) = %q, want last entry 'a'", got)
	}
}

func TestGenerateUnicode(t *testing.T) {
	// Window arithmetic is rune-based, not byte-based.
	m := newTrainedModel(t, 1, 17, "ααβααβ")

	got, err := m.Generate(context.Background(), "α", 4)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	runes := []rune(got)
	if len(runes) != 4 {
		t.Fatalf("expected 4 runes, got %d (%q)", len(runes), got)
	}
	for _, c := range runes {
		if c != 'α' && c != 'β' {
			t.Errorf("generated unexpected character %q", c)
		}
	}
}

func BenchmarkGenerate(b *testing.B) {
	corpus := createBenchmarkCorpus()
	ctx := context.Background()

	m, err := NewSeededModel(4, 1)
	if err != nil {
		b.Fatal(err)
	}
	if err := m.Train(ctx, strings.NewReader(corpus)); err != nil {
		b.Fatalf("Train() setup for benchmark failed: %v", err)
	}

	genOpts := map[string][]GenerateOption{
		"Simple":   {},
		"WithTemp": {WithTemperature(0.7)},
		"WithTopK": {WithTopK(10)},
	}

	for name, opts := range genOpts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				s, err := m.Generate(ctx, "func", 500, opts...)
				if err != nil {
					b.Fatalf("Generate() failed: %v", err)
				}
				b.SetBytes(int64(len(s)))
			}
		})
	}
}
