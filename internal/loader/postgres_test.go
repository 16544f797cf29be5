package loader

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savori/ingredient-sync/internal/types"
)

func sampleIngredient(id int64) types.NormalizedIngredient {
	cal := 52.0
	return types.NormalizedIngredient{
		Name:           fmt.Sprintf("ingredient %d", id),
		ExternalID:     id,
		Category:       "fruits",
		Nutrients:      types.NutrientValues{Calories: &cal},
		Tags:           []string{"fruits", "foundation"},
		SearchableText: "ingredient fruits",
		SyncedAt:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildUpsertQuery(t *testing.T) {
	batch := []types.NormalizedIngredient{sampleIngredient(1), sampleIngredient(2)}

	query, args, err := buildUpsertQuery(batch)
	require.NoError(t, err)

	// One placeholder per column per row.
	assert.Len(t, args, 2*len(ingredientColumns))
	assert.Equal(t, 2*len(ingredientColumns), strings.Count(query, "$"))

	assert.Contains(t, query, "INSERT INTO ingredients")
	assert.Contains(t, query, "ON CONFLICT (external_id) DO UPDATE SET")
	assert.Contains(t, query, "synced_at = EXCLUDED.synced_at")

	// Placeholder numbering must be continuous across rows.
	assert.Contains(t, query, fmt.Sprintf("$%d", 2*len(ingredientColumns)))
	assert.NotContains(t, query, fmt.Sprintf("$%d", 2*len(ingredientColumns)+1))

	// Row values land in column order.
	assert.Equal(t, "ingredient 1", args[0])
	assert.Equal(t, int64(1), args[1])
	assert.Equal(t, "ingredient 2", args[len(ingredientColumns)])
	assert.Equal(t, int64(2), args[len(ingredientColumns)+1])
}

func TestBuildUpsertQuerySingleRow(t *testing.T) {
	query, args, err := buildUpsertQuery([]types.NormalizedIngredient{sampleIngredient(7)})
	require.NoError(t, err)
	assert.Len(t, args, len(ingredientColumns))
	assert.Contains(t, query, "($1, $2, $3")
	assert.NotContains(t, query, fmt.Sprintf("$%d", len(ingredientColumns)+1))
}
