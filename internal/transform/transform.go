// Package transform maps raw provider food records into the application's
// normalized ingredient schema. Transformation is pure: no I/O, and any
// missing optional field becomes an absent value, never an error.
package transform

import (
	"strings"
	"time"

	"github.com/savori/ingredient-sync/internal/types"
)

const (
	// maxNameLen is the display-name limit enforced by the ingredient store.
	maxNameLen = 500
	// maxTags caps the generated tag set.
	maxTags = 10

	ellipsis = "..."
)

// Transformer converts SourceRecords into NormalizedIngredients using the
// nutrient-code table selected at construction time.
type Transformer struct {
	fields map[int]setter
	now    func() time.Time
}

// New returns a Transformer for the given nutrient schema. Unknown schema
// values fall back to the modern table, which is what the current API emits.
func New(schema NutrientSchema) *Transformer {
	fields := modernNutrientFields
	if schema == SchemaLegacy {
		fields = legacyNutrientFields
	}
	return &Transformer{fields: fields, now: time.Now}
}

// Transform derives a NormalizedIngredient from one SourceRecord.
func (t *Transformer) Transform(rec types.SourceRecord) types.NormalizedIngredient {
	ing := types.NormalizedIngredient{
		Name:       truncateName(rec.Description),
		ExternalID: rec.ExternalID,
		Category:   deriveCategory(rec),
		Nutrients:  t.mapNutrients(rec.Nutrients),
		SyncedAt:   t.now().UTC(),
	}
	ing.Tags = deriveTags(rec, ing.Category)
	ing.Flags = deriveFlags(rec, ing.Category)
	ing.SearchableText = buildSearchableText(ing, rec)
	return ing
}

// truncateName caps a description at maxNameLen characters, replacing the
// tail with an ellipsis so the result is exactly maxNameLen long.
func truncateName(s string) string {
	runes := []rune(s)
	if len(runes) <= maxNameLen {
		return s
	}
	return string(runes[:maxNameLen-len(ellipsis)]) + ellipsis
}

// mapNutrients applies the code table. Unknown codes are ignored; the first
// occurrence of a code wins when the provider repeats one.
func (t *Transformer) mapNutrients(nutrients []types.Nutrient) types.NutrientValues {
	var nv types.NutrientValues
	seen := make(map[int]bool, len(nutrients))
	for _, n := range nutrients {
		set, ok := t.fields[n.Code]
		if !ok || seen[n.Code] {
			continue
		}
		seen[n.Code] = true
		set(&nv, n.Amount)
	}
	return nv
}

func deriveCategory(rec types.SourceRecord) string {
	if rec.FoodCategory != "" {
		if mapped, ok := categoryMap[strings.ToLower(rec.FoodCategory)]; ok {
			return mapped
		}
		return rec.FoodCategory
	}
	if def, ok := defaultCategoryByDataType[rec.DataType]; ok {
		return def
	}
	return "uncategorized"
}

// deriveFlags annotates dietary properties two ways: coarse category
// heuristics for unprocessed data types, and an allergen keyword scan over
// the free-text ingredient list. Both are best effort.
func deriveFlags(rec types.SourceRecord, category string) types.DietaryFlags {
	var f types.DietaryFlags

	if rec.DataType != string(types.PartitionBranded) && plantCategories[category] {
		f.Vegan = true
		f.Vegetarian = true
		f.GlutenFree = true
	}
	switch category {
	case "dairy":
		f.Vegetarian = true
		f.ContainsDairy = true
	case "grains", "bakery":
		f.ContainsGluten = true
	}

	if rec.Ingredients != "" {
		text := strings.ToLower(rec.Ingredients)
		for allergen, words := range allergenKeywords {
			if !containsAny(text, words) {
				continue
			}
			switch allergen {
			case "dairy":
				f.ContainsDairy = true
				f.Vegan = false
			case "gluten":
				f.ContainsGluten = true
				f.GlutenFree = false
			case "soy":
				f.ContainsSoy = true
			case "egg":
				f.ContainsEgg = true
				f.Vegan = false
			case "nuts":
				f.ContainsNuts = true
			case "shellfish":
				f.ContainsShellfish = true
				f.Vegan = false
				f.Vegetarian = false
			case "fish":
				f.ContainsFish = true
				f.Vegan = false
				f.Vegetarian = false
			}
		}
	}
	return f
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// deriveTags builds a slug-normalized tag set from the data type, category,
// brand and scientific-name tokens, capped at maxTags entries.
func deriveTags(rec types.SourceRecord, category string) []string {
	var raw []string
	raw = append(raw, rec.DataType, category)
	if rec.BrandOwner != "" {
		raw = append(raw, rec.BrandOwner)
	}
	for _, token := range strings.Fields(rec.ScientificName) {
		raw = append(raw, token)
	}

	tags := make([]string, 0, maxTags)
	seen := make(map[string]bool)
	for _, r := range raw {
		tag := slugify(r)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// slugify lowercases and replaces runs of non-alphanumeric characters with a
// single hyphen.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// buildSearchableText produces the lowercase blob used for substring search.
func buildSearchableText(ing types.NormalizedIngredient, rec types.SourceRecord) string {
	parts := []string{ing.Name, ing.Category}
	if rec.BrandOwner != "" {
		parts = append(parts, rec.BrandOwner)
	}
	if rec.ScientificName != "" {
		parts = append(parts, rec.ScientificName)
	}
	parts = append(parts, ing.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}
