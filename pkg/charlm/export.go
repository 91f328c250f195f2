package charlm

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"unicode/utf8"
)

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export. Only window length and raw
// counts are serialized; probabilities are derived data and are recomputed
// on import.
type ExportedModel struct {
	WindowLength int              `json:"window_length"`
	Windows      []ExportedWindow `json:"windows"`
}

// ExportedWindow is one window and its frequency table, entries in table
// order (most recently first-seen character first).
type ExportedWindow struct {
	Window  string          `json:"window"`
	Entries []ExportedEntry `json:"entries"`
}

// ExportedEntry is a single character's count within an ExportedWindow.
type ExportedEntry struct {
	Char  string `json:"char"`
	Count int    `json:"count"`
}

// Export serializes the model into JSON and writes it to w. Windows are
// sorted so the output is stable; each window's entries keep their table
// order. This is useful for backups or for transferring models.
func (m *Model) Export(w io.Writer) error {
	exported := ExportedModel{
		WindowLength: m.windowLength,
		Windows:      make([]ExportedWindow, 0, len(m.tables)),
	}

	keys := make([]string, 0, len(m.tables))
	for k := range m.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		table := m.tables[k]
		ew := ExportedWindow{Window: k, Entries: make([]ExportedEntry, 0, table.Len())}
		for e := range table.All() {
			ew.Entries = append(ew.Entries, ExportedEntry{Char: string(e.Char), Count: e.Count})
		}
		exported.Windows = append(exported.Windows, ew)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exported); err != nil {
		return err
	}

	m.logger.Info("Model exported",
		slog.Int("window_length", m.windowLength),
		slog.Int("windows_exported", len(exported.Windows)),
	)
	return nil
}

// Import reads a JSON representation of a model from r and merges its data
// into the model. Counts for transitions already present are added
// together; new windows and characters are created. The window lengths
// must match. All touched tables are re-finalized, so the model is ready
// to generate from afterwards.
func (m *Model) Import(r io.Reader) error {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return fmt.Errorf("failed to decode json model: %w", err)
	}
	if imported.WindowLength != m.windowLength {
		return fmt.Errorf("imported window length %d does not match model window length %d", imported.WindowLength, m.windowLength)
	}

	merged, err := m.merge(&imported)
	if err != nil {
		return err
	}

	m.logger.Info("Model imported successfully",
		slog.Int("windows_merged", len(imported.Windows)),
		slog.Int("entries_merged", merged),
	)
	return nil
}

// ImportModel constructs a fresh unseeded model from an exported
// representation. It is a convenience wrapper around NewModel and Import.
func ImportModel(r io.Reader) (*Model, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("failed to decode json model: %w", err)
	}
	m, err := NewModel(imported.WindowLength)
	if err != nil {
		return nil, err
	}
	if _, err := m.merge(&imported); err != nil {
		return nil, err
	}
	return m, nil
}

// merge folds an exported representation into the model's tables and
// re-finalizes every touched table. The whole representation is validated
// before anything is applied, so a malformed input leaves the model
// untouched. It returns the number of entries merged.
func (m *Model) merge(imported *ExportedModel) (int, error) {
	for _, ew := range imported.Windows {
		if utf8.RuneCountInString(ew.Window) != m.windowLength {
			return 0, fmt.Errorf("imported window %q is not %d characters long", ew.Window, m.windowLength)
		}
		for _, entry := range ew.Entries {
			if _, size := utf8.DecodeRuneInString(entry.Char); size != len(entry.Char) || size == 0 {
				return 0, fmt.Errorf("imported entry %q for window %q is not a single character", entry.Char, ew.Window)
			}
			if entry.Count < 1 {
				return 0, fmt.Errorf("imported entry %q for window %q has non-positive count %d", entry.Char, ew.Window, entry.Count)
			}
		}
	}

	var merged int
	for _, ew := range imported.Windows {
		table, ok := m.tables[ew.Window]
		if !ok {
			table = NewFreqTable()
			m.tables[ew.Window] = table
		}
		for _, entry := range ew.Entries {
			c, _ := utf8.DecodeRuneInString(entry.Char)
			table.addCount(c, entry.Count)
			merged++
		}
		table.Finalize()
	}
	return merged, nil
}
