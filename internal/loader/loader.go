// Package loader persists normalized ingredients into the application's
// ingredient store via idempotent batch upserts keyed on external_id.
package loader

import (
	"context"

	"github.com/savori/ingredient-sync/internal/types"
)

// DefaultBatchSize balances round-trip overhead against the blast radius of
// a failed batch call.
const DefaultBatchSize = 50

// Sink is an upsert-capable ingredient store. Upsert returns the number of
// rows actually written; it never fails the whole call for partial failure.
// Records not written remain the caller's responsibility; the upsert is
// idempotent, so a later re-run retries them naturally.
type Sink interface {
	Upsert(ctx context.Context, batch []types.NormalizedIngredient) (int, error)
	Close()
}
