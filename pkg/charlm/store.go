package charlm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"unicode/utf8"
)

// SetupSchema initializes the tables needed to persist models in the
// provided database. This function should be called once on a new database
// before a Store is created. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS charlm_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    window_length INTEGER NOT NULL
);
`
		schemaEntries = `
CREATE TABLE IF NOT EXISTS charlm_entries (
    model_id INTEGER NOT NULL,
    window_text TEXT NOT NULL,
    position INTEGER NOT NULL,
    char TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, window_text, position)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	// If the transaction succeeds, tx.Commit() runs first and the rollback
	// does nothing. If it fails, this cleans up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaEntries); err != nil {
		return fmt.Errorf("could not create entries schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists trained models to a SQL database. It holds the database
// connection and prepared statements for efficient access. Entry rows
// carry an explicit position so a loaded table reproduces the exact order
// the in-memory table had, which the sampling scan depends on.
type Store struct {
	db              *sql.DB
	stmtGetModel    *sql.Stmt
	stmtListModels  *sql.Stmt
	stmtUpsertModel *sql.Stmt
	stmtDeleteModel *sql.Stmt
	stmtClearModel  *sql.Stmt
	stmtInsertEntry *sql.Stmt
	stmtGetEntries  *sql.Stmt
	logger          *slog.Logger
}

// NewStore creates a Store on top of a database that SetupSchema has been
// run on. It pre-compiles all necessary SQL statements, returning an error
// if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModel, err := db.Prepare(`SELECT model_id, window_length FROM charlm_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtListModels, err := db.Prepare(`SELECT model_name, window_length FROM charlm_models;`)
	if err != nil {
		return nil, err
	}

	stmtUpsertModel, err := db.Prepare(`INSERT INTO charlm_models (model_name, window_length) VALUES (?, ?) ON CONFLICT(model_name) DO UPDATE SET window_length = excluded.window_length RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtDeleteModel, err := db.Prepare(`DELETE FROM charlm_models WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtClearModel, err := db.Prepare(`DELETE FROM charlm_entries WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInsertEntry, err := db.Prepare(`INSERT INTO charlm_entries (model_id, window_text, position, char, count) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtGetEntries, err := db.Prepare(`SELECT window_text, char, count FROM charlm_entries WHERE model_id = ? ORDER BY window_text, position;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:              db,
		stmtGetModel:    stmtGetModel,
		stmtListModels:  stmtListModels,
		stmtUpsertModel: stmtUpsertModel,
		stmtDeleteModel: stmtDeleteModel,
		stmtClearModel:  stmtClearModel,
		stmtInsertEntry: stmtInsertEntry,
		stmtGetEntries:  stmtGetEntries,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It should
// be called when the Store is no longer needed to free up database
// resources. It does not close the underlying database.
func (s *Store) Close() {
	_ = s.stmtGetModel.Close()
	_ = s.stmtListModels.Close()
	_ = s.stmtUpsertModel.Close()
	_ = s.stmtDeleteModel.Close()
	_ = s.stmtClearModel.Close()
	_ = s.stmtInsertEntry.Close()
	_ = s.stmtGetEntries.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save persists a trained model under the given name, replacing any model
// previously saved under it. The operation is performed within a
// transaction. Only window length and counts are stored; probabilities are
// recomputed on load.
func (s *Store) Save(ctx context.Context, name string, m *Model) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	if err = tx.StmtContext(ctx, s.stmtUpsertModel).QueryRowContext(ctx, name, m.windowLength).Scan(&modelID); err != nil {
		return fmt.Errorf("failed to upsert model '%s': %w", name, err)
	}

	if _, err = tx.StmtContext(ctx, s.stmtClearModel).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to clear old entries for model '%s': %w", name, err)
	}

	stmtInsertEntry := tx.StmtContext(ctx, s.stmtInsertEntry)

	keys := make([]string, 0, len(m.tables))
	for k := range m.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var entries int
	for _, window := range keys {
		position := 0
		for e := range m.tables[window].All() {
			if _, err = stmtInsertEntry.ExecContext(ctx, modelID, window, position, string(e.Char), e.Count); err != nil {
				return fmt.Errorf("failed to insert entry %q for window %q: %w", e.Char, window, err)
			}
			position++
			entries++
		}
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("windows_saved", len(keys)),
		slog.Int("entries_saved", entries),
	)

	return tx.Commit()
}

// Load rebuilds an unseeded model from the database. The returned model is
// finalized and ready to generate from. It returns an error wrapping
// sql.ErrNoRows when no model is saved under the name.
func (s *Store) Load(ctx context.Context, name string) (*Model, error) {
	return s.load(ctx, name, nil)
}

// LoadSeeded rebuilds a model from the database with a fixed random seed,
// for reproducible generation from a persisted model.
func (s *Store) LoadSeeded(ctx context.Context, name string, seed uint64) (*Model, error) {
	return s.load(ctx, name, &seed)
}

func (s *Store) load(ctx context.Context, name string, seed *uint64) (*Model, error) {
	var modelID, windowLength int
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, &windowLength)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("model '%s' not found: %w", name, err)
		}
		return nil, fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	var m *Model
	if seed != nil {
		m, err = NewSeededModel(windowLength, *seed)
	} else {
		m, err = NewModel(windowLength)
	}
	if err != nil {
		return nil, fmt.Errorf("stored model '%s' is invalid: %w", name, err)
	}

	rows, err := s.stmtGetEntries.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query entries for model '%s': %w", name, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var entries int
	for rows.Next() {
		var window, char string
		var count int
		if err = rows.Scan(&window, &char, &count); err != nil {
			return nil, err
		}
		c, size := utf8.DecodeRuneInString(char)
		if size != len(char) || size == 0 {
			return nil, fmt.Errorf("stored entry %q for window %q of model '%s' is not a single character", char, window, name)
		}
		table, ok := m.tables[window]
		if !ok {
			table = NewFreqTable()
			m.tables[window] = table
		}
		// Rows arrive in position order, so addCount reproduces table order.
		table.addCount(c, count)
		entries++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for _, table := range m.tables {
		table.Finalize()
	}

	s.logger.InfoContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("windows_loaded", len(m.tables)),
		slog.Int("entries_loaded", entries),
	)

	return m, nil
}

// Models returns the names of all saved models mapped to their window lengths.
func (s *Store) Models(ctx context.Context) (map[string]int, error) {
	rows, err := s.stmtListModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]int)
	for rows.Next() {
		var name string
		var windowLength int
		if err = rows.Scan(&name, &windowLength); err != nil {
			return nil, err
		}
		models[name] = windowLength
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Delete removes a saved model and all of its entries. Deleting a name
// that was never saved is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	var modelID, windowLength int
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, &windowLength)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for delete: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.StmtContext(ctx, s.stmtClearModel).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to remove entries for model %d: %w", modelID, err)
	}

	if _, err = tx.StmtContext(ctx, s.stmtDeleteModel).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
	)

	return tx.Commit()
}
