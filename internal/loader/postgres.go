package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savori/ingredient-sync/internal/types"
)

// ingredientColumns are the pipeline-owned columns of the ingredients table.
// The surrounding application owns additional business columns that the
// pipeline never touches.
var ingredientColumns = []string{
	"name", "external_id", "category",
	"calories", "protein", "carbohydrate", "fat", "fiber",
	"sugar", "sodium", "calcium", "iron", "vitamin_c",
	"tags", "dietary_flags", "searchable_text", "synced_at",
}

// PostgresSink writes ingredients to PostgreSQL through a pgx connection
// pool.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink establishes a connection pool and verifies it.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Upsert writes a batch keyed on external_id with update-on-conflict
// semantics. The fast path is one multi-row statement in a transaction. If
// that fails (for example a legacy row keyed by name breaks a secondary
// constraint), it falls back to row-at-a-time upserts where rows resolvable
// by a name-or-external-id lookup count as duplicates, not errors.
func (s *PostgresSink) Upsert(ctx context.Context, batch []types.NormalizedIngredient) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	written, err := s.upsertAll(ctx, batch)
	if err == nil {
		return written, nil
	}

	// Partial-failure path: retry each row independently so one bad record
	// does not sink the batch.
	written = 0
	failed := 0
	var lastErr error
	for _, ing := range batch {
		rowErr := s.upsertOne(ctx, ing)
		if rowErr == nil {
			written++
			continue
		}
		if s.existsByNameOrID(ctx, ing) {
			continue // already stored under a legacy key: duplicate, not a failure
		}
		failed++
		lastErr = rowErr
	}
	if failed == len(batch) {
		return 0, fmt.Errorf("all %d rows in batch failed: %w", failed, lastErr)
	}
	return written, nil
}

// upsertAll performs the whole batch as one multi-row INSERT ... ON CONFLICT
// inside a transaction.
func (s *PostgresSink) upsertAll(ctx context.Context, batch []types.NormalizedIngredient) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := buildUpsertQuery(batch)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("batch upsert failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresSink) upsertOne(ctx context.Context, ing types.NormalizedIngredient) error {
	query, args, err := buildUpsertQuery([]types.NormalizedIngredient{ing})
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return err
}

// existsByNameOrID checks whether the ingredient is already stored under
// either key. Used only on the fallback path to classify a constraint
// violation as a duplicate rather than a failure.
func (s *PostgresSink) existsByNameOrID(ctx context.Context, ing types.NormalizedIngredient) bool {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ingredients WHERE external_id = $1 OR name = $2)`,
		ing.ExternalID, ing.Name,
	).Scan(&exists)
	return err == nil && exists
}

// buildUpsertQuery renders a multi-row upsert statement with numbered
// placeholders for the given batch.
func buildUpsertQuery(batch []types.NormalizedIngredient) (string, []any, error) {
	cols := len(ingredientColumns)
	values := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*cols)

	for i, ing := range batch {
		flags, err := json.Marshal(ing.Flags)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal dietary flags for %d: %w", ing.ExternalID, err)
		}

		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*cols+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")

		nv := ing.Nutrients
		args = append(args,
			ing.Name, ing.ExternalID, ing.Category,
			nv.Calories, nv.Protein, nv.Carbohydrate, nv.Fat, nv.Fiber,
			nv.Sugar, nv.Sodium, nv.Calcium, nv.Iron, nv.VitaminC,
			ing.Tags, flags, ing.SearchableText, ing.SyncedAt,
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO ingredients (%s) VALUES %s
		 ON CONFLICT (external_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   category = EXCLUDED.category,
		   calories = EXCLUDED.calories,
		   protein = EXCLUDED.protein,
		   carbohydrate = EXCLUDED.carbohydrate,
		   fat = EXCLUDED.fat,
		   fiber = EXCLUDED.fiber,
		   sugar = EXCLUDED.sugar,
		   sodium = EXCLUDED.sodium,
		   calcium = EXCLUDED.calcium,
		   iron = EXCLUDED.iron,
		   vitamin_c = EXCLUDED.vitamin_c,
		   tags = EXCLUDED.tags,
		   dietary_flags = EXCLUDED.dietary_flags,
		   searchable_text = EXCLUDED.searchable_text,
		   synced_at = EXCLUDED.synced_at`,
		strings.Join(ingredientColumns, ", "),
		strings.Join(values, ", "),
	)
	return query, args, nil
}
