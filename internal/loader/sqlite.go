package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/savori/ingredient-sync/internal/types"
)

// SQLiteSink is a local ingredient store used for offline and development
// ingestion runs. It implements the same upsert contract as PostgresSink,
// with tags and dietary flags stored as JSON text.
type SQLiteSink struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ingredients (
	external_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT,
	calories REAL, protein REAL, carbohydrate REAL, fat REAL, fiber REAL,
	sugar REAL, sodium REAL, calcium REAL, iron REAL, vitamin_c REAL,
	tags TEXT,
	dietary_flags TEXT,
	searchable_text TEXT,
	synced_at DATETIME
);
`

// NewSQLiteSink opens (or creates) the database file and ensures the
// ingredients table exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ingredients table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteSink) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Upsert writes the batch row by row inside one transaction. Row failures
// are absorbed: the row is simply not counted, and the idempotent upsert
// means a later re-run picks it up.
func (s *SQLiteSink) Upsert(ctx context.Context, batch []types.NormalizedIngredient) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ingredients (
			external_id, name, category,
			calories, protein, carbohydrate, fat, fiber,
			sugar, sodium, calcium, iron, vitamin_c,
			tags, dietary_flags, searchable_text, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			calories = excluded.calories,
			protein = excluded.protein,
			carbohydrate = excluded.carbohydrate,
			fat = excluded.fat,
			fiber = excluded.fiber,
			sugar = excluded.sugar,
			sodium = excluded.sodium,
			calcium = excluded.calcium,
			iron = excluded.iron,
			vitamin_c = excluded.vitamin_c,
			tags = excluded.tags,
			dietary_flags = excluded.dietary_flags,
			searchable_text = excluded.searchable_text,
			synced_at = excluded.synced_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	written := 0
	for _, ing := range batch {
		tags, err := json.Marshal(ing.Tags)
		if err != nil {
			continue
		}
		flags, err := json.Marshal(ing.Flags)
		if err != nil {
			continue
		}

		nv := ing.Nutrients
		_, err = stmt.ExecContext(ctx,
			ing.ExternalID, ing.Name, ing.Category,
			nv.Calories, nv.Protein, nv.Carbohydrate, nv.Fat, nv.Fiber,
			nv.Sugar, nv.Sodium, nv.Calcium, nv.Iron, nv.VitaminC,
			string(tags), string(flags), ing.SearchableText, ing.SyncedAt.UTC(),
		)
		if err != nil {
			continue
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return written, nil
}
