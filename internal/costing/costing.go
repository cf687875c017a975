// Package costing holds the pure cost computations shared by the snapshot
// layer, the menu rollup and the report builders. Every function here is a
// plain computation over plain data; persistence stays in internal/snapshot.
package costing

import (
	"math"
)

// Line carries the numeric part of one ingredient snapshot.
type Line struct {
	Quantity float64
	Price    float64
	Weight   float64
}

// Totals is the output of a recipe cost recalculation.
type Totals struct {
	TotalCost      float64 `json:"total_cost"`
	CostPerServing float64 `json:"cost_per_serving"`
}

// UnitPrice derives the per-unit price of an ingredient. When the pack
// weight is absent or zero the pack price is used directly. Malformed
// values degrade to a zero price instead of failing the calculation.
func UnitPrice(price, weight float64) float64 {
	price = sanitize(price)
	weight = sanitize(weight)
	if weight > 0 {
		return price / weight
	}
	return price
}

// LineCost is the cost contribution of a single snapshot line.
func LineCost(quantity, price, weight float64) float64 {
	return sanitize(quantity) * UnitPrice(price, weight)
}

// RecipeTotals sums every line cost and derives cost per serving. A recipe
// with servings <= 0 reports a zero cost per serving rather than dividing
// through. The computation is idempotent: identical inputs always produce
// identical totals.
func RecipeTotals(lines []Line, servings int) Totals {
	var total float64
	for _, line := range lines {
		total += LineCost(line.Quantity, line.Price, line.Weight)
	}

	totals := Totals{TotalCost: total}
	if servings > 0 {
		totals.CostPerServing = total / float64(servings)
	}
	return totals
}

// Round2 rounds a currency value to two decimal places. It belongs at
// presentation boundaries only; intermediate accumulation stays unrounded.
func Round2(value float64) float64 {
	if !isFinite(value) {
		return 0
	}
	return math.Round(value*100) / 100
}

// sanitize coerces non-finite or negative inputs to zero so a malformed
// snapshot degrades to a zero contribution instead of poisoning the batch.
func sanitize(value float64) float64 {
	if !isFinite(value) || value < 0 {
		return 0
	}
	return value
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
