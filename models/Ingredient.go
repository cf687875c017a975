package models

import (
	"gorm.io/gorm"
)

// Ingredient is the canonical supplier catalogue record, keyed by product code.
// Records are created and refreshed through bulk import; there is no explicit
// delete path.
type Ingredient struct {
	gorm.Model
	ProductCode string  `gorm:"uniqueIndex;not null" json:"product_code"`
	Name        string  `gorm:"not null" json:"name"`
	Supplier    string  `json:"supplier"`
	PackWeight  float64 `json:"pack_weight"`
	Unit        string  `json:"unit"`
	Price       float64 `gorm:"not null" json:"price"`
}

// AllergenDeclaration records one allergen status for an ingredient.
// Status holds one of "has", "no" or "may"; unrecognised statuses are never
// persisted.
type AllergenDeclaration struct {
	gorm.Model
	ProductCode  string `gorm:"not null;uniqueIndex:idx_allergen_declaration" json:"product_code"`
	AllergenName string `gorm:"not null;uniqueIndex:idx_allergen_declaration" json:"allergen_name"`
	Status       string `gorm:"not null" json:"status"`
}
