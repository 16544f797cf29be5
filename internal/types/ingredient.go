// Package types defines the shared data structures for the ingredient
// ingestion pipeline.
package types

import "time"

// Partition identifies a FoodData Central data-type bucket. The pipeline
// processes one partition at a time, each with its own page sequence.
type Partition string

// The partitions ingested, in processing order.
const (
	PartitionFoundation Partition = "Foundation"
	PartitionSRLegacy   Partition = "SR Legacy"
	PartitionSurvey     Partition = "Survey (FNDDS)"
	PartitionBranded    Partition = "Branded"
)

// Partitions returns the ingestion order. Foundation and SR Legacy are small
// and land useful data early; Branded is by far the largest and goes last.
func Partitions() []Partition {
	return []Partition{PartitionFoundation, PartitionSRLegacy, PartitionSurvey, PartitionBranded}
}

// Nutrient is one (code, amount) pair as reported by the provider.
// Codes are provider-specific numeric identifiers; unknown codes are ignored
// downstream.
type Nutrient struct {
	Code   int     `json:"nutrientId"`
	Amount float64 `json:"value"`
}

// SourceRecord is one food entity exactly as returned by the provider.
// It is immutable once fetched; the pipeline never mutates it.
type SourceRecord struct {
	ExternalID     int64      `json:"fdcId"`
	Description    string     `json:"description"`
	DataType       string     `json:"dataType"`
	FoodCategory   string     `json:"foodCategory,omitempty"`
	BrandOwner     string     `json:"brandOwner,omitempty"`
	Ingredients    string     `json:"ingredients,omitempty"`
	ServingSize    float64    `json:"servingSize,omitempty"`
	ServingUnit    string     `json:"servingSizeUnit,omitempty"`
	ScientificName string     `json:"scientificName,omitempty"`
	Nutrients      []Nutrient `json:"foodNutrients"`
}

// NutrientValues holds the fixed set of nutrient fields the application
// stores. Each field is optional: nil means the source carried no value for
// that nutrient code, which is distinct from an explicit zero.
type NutrientValues struct {
	Calories     *float64 `json:"calories,omitempty"`
	Protein      *float64 `json:"protein,omitempty"`
	Carbohydrate *float64 `json:"carbohydrate,omitempty"`
	Fat          *float64 `json:"fat,omitempty"`
	Fiber        *float64 `json:"fiber,omitempty"`
	Sugar        *float64 `json:"sugar,omitempty"`
	Sodium       *float64 `json:"sodium,omitempty"`
	Calcium      *float64 `json:"calcium,omitempty"`
	Iron         *float64 `json:"iron,omitempty"`
	VitaminC     *float64 `json:"vitamin_c,omitempty"`
}

// DietaryFlags are best-effort annotations derived from category heuristics
// and allergen keyword scans. They are advisory, not authoritative.
type DietaryFlags struct {
	Vegan             bool `json:"vegan"`
	Vegetarian        bool `json:"vegetarian"`
	GlutenFree        bool `json:"gluten_free"`
	ContainsDairy     bool `json:"contains_dairy"`
	ContainsGluten    bool `json:"contains_gluten"`
	ContainsSoy       bool `json:"contains_soy"`
	ContainsEgg       bool `json:"contains_egg"`
	ContainsNuts      bool `json:"contains_nuts"`
	ContainsShellfish bool `json:"contains_shellfish"`
	ContainsFish      bool `json:"contains_fish"`
}

// NormalizedIngredient is the pipeline's output unit, derived
// deterministically from one SourceRecord. ExternalID is the upsert conflict
// key: re-ingesting the same ID updates the stored row, never duplicates it.
type NormalizedIngredient struct {
	Name           string         `json:"name"`
	ExternalID     int64          `json:"external_id"`
	Category       string         `json:"category"`
	Nutrients      NutrientValues `json:"nutrients"`
	Tags           []string       `json:"tags"`
	Flags          DietaryFlags   `json:"dietary_flags"`
	SearchableText string         `json:"searchable_text"`
	SyncedAt       time.Time      `json:"synced_at"`
}
