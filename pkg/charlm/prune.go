package charlm

import "log/slog"

// Prune removes entries with a count of minCount or less from every table,
// and drops tables left empty. This is useful for shrinking a model
// trained on a noisy corpus by discarding rare, and often accidental,
// transitions. Affected tables are re-finalized so their distributions
// stay consistent. It returns the number of entries removed.
//
// Prune changes the learned distributions: call it before generating, not
// between generation runs you want comparable.
func (m *Model) Prune(minCount int) int {
	var removed, dropped int
	for window, table := range m.tables {
		var victims []rune
		for e := range table.All() {
			if e.Count <= minCount {
				victims = append(victims, e.Char)
			}
		}
		for _, c := range victims {
			if table.Remove(c) {
				removed++
			}
		}
		if table.Len() == 0 {
			delete(m.tables, window)
			dropped++
			continue
		}
		if len(victims) > 0 {
			table.Finalize()
		}
	}

	m.logger.Info("Model pruned",
		slog.Int("min_count", minCount),
		slog.Int("entries_removed", removed),
		slog.Int("windows_dropped", dropped),
	)
	return removed
}
