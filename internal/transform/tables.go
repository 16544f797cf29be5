package transform

import "github.com/savori/ingredient-sync/internal/types"

// NutrientSchema selects which provider nutrient-code table applies to the
// responses being ingested. The provider changed its numeric encoding between
// API versions without a version flag in the payload, so the choice is
// external configuration, never inferred, and the two tables are never merged.
type NutrientSchema string

const (
	// SchemaLegacy covers the older three-digit nutrient numbers (208, 203, ...).
	SchemaLegacy NutrientSchema = "legacy"
	// SchemaModern covers the current four-digit nutrient IDs (1008, 1003, ...).
	SchemaModern NutrientSchema = "modern"
)

// setter assigns one nutrient amount to its field on NutrientValues.
type setter func(nv *types.NutrientValues, amount float64)

// legacyNutrientFields maps legacy nutrient numbers to target fields.
var legacyNutrientFields = map[int]setter{
	208: func(nv *types.NutrientValues, v float64) { nv.Calories = &v },
	203: func(nv *types.NutrientValues, v float64) { nv.Protein = &v },
	205: func(nv *types.NutrientValues, v float64) { nv.Carbohydrate = &v },
	204: func(nv *types.NutrientValues, v float64) { nv.Fat = &v },
	291: func(nv *types.NutrientValues, v float64) { nv.Fiber = &v },
	269: func(nv *types.NutrientValues, v float64) { nv.Sugar = &v },
	307: func(nv *types.NutrientValues, v float64) { nv.Sodium = &v },
	301: func(nv *types.NutrientValues, v float64) { nv.Calcium = &v },
	303: func(nv *types.NutrientValues, v float64) { nv.Iron = &v },
	401: func(nv *types.NutrientValues, v float64) { nv.VitaminC = &v },
}

// modernNutrientFields maps current FDC nutrient IDs to target fields.
var modernNutrientFields = map[int]setter{
	1008: func(nv *types.NutrientValues, v float64) { nv.Calories = &v },
	1003: func(nv *types.NutrientValues, v float64) { nv.Protein = &v },
	1005: func(nv *types.NutrientValues, v float64) { nv.Carbohydrate = &v },
	1004: func(nv *types.NutrientValues, v float64) { nv.Fat = &v },
	1079: func(nv *types.NutrientValues, v float64) { nv.Fiber = &v },
	2000: func(nv *types.NutrientValues, v float64) { nv.Sugar = &v },
	1093: func(nv *types.NutrientValues, v float64) { nv.Sodium = &v },
	1087: func(nv *types.NutrientValues, v float64) { nv.Calcium = &v },
	1089: func(nv *types.NutrientValues, v float64) { nv.Iron = &v },
	1162: func(nv *types.NutrientValues, v float64) { nv.VitaminC = &v },
}

// categoryMap translates provider food-category strings (lowercased) into
// the application's category vocabulary. Unlisted categories pass through
// unchanged.
var categoryMap = map[string]string{
	"vegetables and vegetable products": "vegetables",
	"fruits and fruit juices":           "fruits",
	"dairy and egg products":            "dairy",
	"poultry products":                  "meat",
	"beef products":                     "meat",
	"pork products":                     "meat",
	"lamb, veal, and game products":     "meat",
	"sausages and luncheon meats":       "meat",
	"finfish and shellfish products":    "seafood",
	"legumes and legume products":       "legumes",
	"nut and seed products":             "nuts",
	"cereal grains and pasta":           "grains",
	"breakfast cereals":                 "grains",
	"baked products":                    "bakery",
	"fats and oils":                     "fats",
	"beverages":                         "beverages",
	"sweets":                            "sweets",
	"snacks":                            "snacks",
	"soups, sauces, and gravies":        "sauces",
	"spices and herbs":                  "spices",
}

// defaultCategoryByDataType supplies a category when the provider sends no
// food category at all.
var defaultCategoryByDataType = map[string]string{
	"Foundation":     "whole foods",
	"SR Legacy":      "generic",
	"Survey (FNDDS)": "prepared",
	"Branded":        "packaged",
}

// plantCategories are categories that imply vegan, vegetarian and
// gluten-free for unprocessed (non-branded) foods.
var plantCategories = map[string]bool{
	"vegetables": true,
	"fruits":     true,
	"legumes":    true,
	"nuts":       true,
	"spices":     true,
}

// allergenKeywords drives the free-text ingredient scan. Matches are
// substring matches against the lowercased ingredient list.
var allergenKeywords = map[string][]string{
	"dairy":     {"milk", "cream", "butter", "cheese", "whey", "casein", "yogurt"},
	"gluten":    {"wheat", "barley", "rye", "malt", "semolina"},
	"soy":       {"soy", "soya", "edamame", "tofu"},
	"egg":       {"egg", "albumen"},
	"nuts":      {"almond", "peanut", "cashew", "walnut", "pecan", "hazelnut", "pistachio"},
	"shellfish": {"shrimp", "crab", "lobster", "prawn"},
	"fish":      {"salmon", "tuna", "anchovy", "cod", "sardine", "tilapia"},
}
