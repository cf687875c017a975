package costing

// Slot is one populated menu position with its recipe's cached figures
// already resolved. Missing recipes never reach the rollup; resolution
// silently drops them upstream.
type Slot struct {
	Label          string  `json:"label"`
	RecipeID       uint    `json:"recipe_id"`
	RecipeName     string  `json:"recipe_name"`
	CostPerServing float64 `json:"cost_per_serving"`
	Servings       int     `json:"servings"`
}

// Day groups the populated slots of one weekday.
type Day struct {
	Name  string `json:"name"`
	Slots []Slot `json:"slots"`
}

// Week is the resolved input for a menu rollup: the five weekday menus plus
// the non-day-specific daily options.
type Week struct {
	Days    []Day  `json:"days"`
	Options []Slot `json:"options"`
}

// DayCost is the rollup outcome for a single weekday.
type DayCost struct {
	Day      string  `json:"day"`
	Cost     float64 `json:"cost"`
	Items    int     `json:"items"`
	Servings int     `json:"servings"`
}

// Rollup aggregates a week's recipe costs. The daily-options bucket is kept
// separate; callers that price options into the week add OptionsCost onto
// TotalWeeklyCost themselves.
type Rollup struct {
	Days                []DayCost `json:"days"`
	OptionsCost         float64   `json:"options_cost"`
	OptionsItems        int       `json:"options_items"`
	OptionsServings     int       `json:"options_servings"`
	TotalWeeklyCost     float64   `json:"total_weekly_cost"`
	TotalWeeklyServings int       `json:"total_weekly_servings"`
	CostPerPerson       float64   `json:"cost_per_person"`
}

// RollupMenu composes per-recipe cost-per-serving figures into daily and
// weekly totals.
//
// A day's cost sums the cost per serving of every populated slot. A day's
// servings is the maximum servings among its slots, not the sum: the slots
// are alternative or complementary portions of the same meal, so servings
// models how many people the day's meal feeds. The weekly servings figure
// mirrors that by taking the maximum across days.
func RollupMenu(week Week) Rollup {
	rollup := Rollup{Days: make([]DayCost, 0, len(week.Days))}

	for _, day := range week.Days {
		cost, items, servings := sumSlots(day.Slots)
		rollup.Days = append(rollup.Days, DayCost{
			Day:      day.Name,
			Cost:     cost,
			Items:    items,
			Servings: servings,
		})
		rollup.TotalWeeklyCost += cost
		if servings > rollup.TotalWeeklyServings {
			rollup.TotalWeeklyServings = servings
		}
	}

	rollup.OptionsCost, rollup.OptionsItems, rollup.OptionsServings = sumSlots(week.Options)

	if rollup.TotalWeeklyServings > 0 {
		rollup.CostPerPerson = Round2(rollup.TotalWeeklyCost / float64(rollup.TotalWeeklyServings))
	}
	return rollup
}

func sumSlots(slots []Slot) (cost float64, items, servings int) {
	for _, slot := range slots {
		cost += sanitize(slot.CostPerServing)
		items++
		if slot.Servings > servings {
			servings = slot.Servings
		}
	}
	return cost, items, servings
}
