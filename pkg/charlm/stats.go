package charlm

// ModelStats holds aggregated statistics for a trained model.
type ModelStats struct {
	Windows      int // The number of distinct windows observed during training.
	Entries      int // The number of unique window->character transitions.
	Observations int // The sum of all counts; the total number of trained transitions.
	VocabSize    int // The number of distinct characters observed as followers.
}

// Stats returns a snapshot of statistics over the trained mapping.
func (m *Model) Stats() ModelStats {
	vocab := make(map[rune]struct{})
	stats := ModelStats{Windows: len(m.tables)}
	for _, table := range m.tables {
		stats.Entries += table.Len()
		for e := range table.All() {
			stats.Observations += e.Count
			vocab[e.Char] = struct{}{}
		}
	}
	stats.VocabSize = len(vocab)
	return stats
}
