package models

import (
	"gorm.io/gorm"
)

// Recipe is a dish composed from ingredient snapshots.
//
// TotalCost and CostPerServing are cached derivations maintained by the
// costing recalculation; they are not authoritative and can be stale until
// the next recalculation runs.
type Recipe struct {
	gorm.Model
	Name           string             `gorm:"not null" json:"name"`
	Code           string             `json:"code"`
	Servings       int                `gorm:"not null;default:1" json:"servings"`
	Instructions   string             `gorm:"type:text" json:"instructions"`
	Notes          string             `gorm:"type:text" json:"notes"`
	PhotoPath      string             `json:"photo_path"`
	TotalCost      float64            `json:"total_cost"`
	CostPerServing float64            `json:"cost_per_serving"`
	Ingredients    []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients"`
}
