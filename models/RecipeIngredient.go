package models

import (
	"gorm.io/gorm"
)

// RecipeIngredient links a recipe to an ingredient through a snapshot.
//
// The Ingredient* fields copy the catalogue record as it stood at the last
// sync. They deliberately decouple recipe history from later price or
// allergen changes; a bulk import refreshes them through the resync pass.
// IngredientAllergies stores the serialized "name:status" list.
type RecipeIngredient struct {
	gorm.Model
	RecipeID            uint    `gorm:"not null;index" json:"recipe_id"`
	OriginalProductCode string  `gorm:"not null;index" json:"original_product_code"`
	Quantity            float64 `gorm:"not null" json:"quantity"`
	Unit                string  `json:"unit"`
	Notes               string  `gorm:"type:text" json:"notes"`
	IngredientName      string  `json:"ingredient_name"`
	IngredientSupplier  string  `json:"ingredient_supplier"`
	IngredientPrice     float64 `json:"ingredient_price"`
	IngredientWeight    float64 `json:"ingredient_weight"`
	IngredientUnit      string  `json:"ingredient_unit"`
	IngredientAllergies string  `gorm:"type:text" json:"ingredient_allergies"`
}
