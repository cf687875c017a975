package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Weekdays lists the menu day columns in serving order.
var Weekdays = [5]string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// DayMenu holds the recipe selections for one weekday. Every slot is
// optional; a nil slot means nothing is planned for it.
type DayMenu struct {
	LunchOption1 *uint `json:"lunch_option_1,omitempty"`
	LunchOption2 *uint `json:"lunch_option_2,omitempty"`
	LunchOption3 *uint `json:"lunch_option_3,omitempty"`
	SideDish     *uint `json:"side_dish,omitempty"`
	Dessert      *uint `json:"dessert,omitempty"`
}

// RecipeIDs returns the populated slots in slot order.
func (d *DayMenu) RecipeIDs() []uint {
	if d == nil {
		return nil
	}
	ids := make([]uint, 0, 5)
	for _, slot := range []*uint{d.LunchOption1, d.LunchOption2, d.LunchOption3, d.SideDish, d.Dessert} {
		if slot != nil && *slot != 0 {
			ids = append(ids, *slot)
		}
	}
	return ids
}

// DailyOptions holds selections offered on every day of the week.
type DailyOptions struct {
	Option1 *uint `json:"option_1,omitempty"`
	Option2 *uint `json:"option_2,omitempty"`
	Option3 *uint `json:"option_3,omitempty"`
	Option4 *uint `json:"option_4,omitempty"`
}

// RecipeIDs returns the populated option slots in slot order.
func (o *DailyOptions) RecipeIDs() []uint {
	if o == nil {
		return nil
	}
	ids := make([]uint, 0, 4)
	for _, slot := range []*uint{o.Option1, o.Option2, o.Option3, o.Option4} {
		if slot != nil && *slot != 0 {
			ids = append(ids, *slot)
		}
	}
	return ids
}

// Menu is a week's plan, upserted by its unique week start date
// (formatted "2006-01-02"). Each weekday column stores a DayMenu JSON blob.
type Menu struct {
	gorm.Model
	Name          string         `gorm:"not null" json:"name"`
	WeekStartDate string         `gorm:"uniqueIndex;not null" json:"week_start_date"`
	Monday        datatypes.JSON `json:"monday"`
	Tuesday       datatypes.JSON `json:"tuesday"`
	Wednesday     datatypes.JSON `json:"wednesday"`
	Thursday      datatypes.JSON `json:"thursday"`
	Friday        datatypes.JSON `json:"friday"`
	DailyOptions  datatypes.JSON `json:"daily_options"`
}

// Days decodes the weekday blobs in Monday..Friday order. Empty blobs yield
// nil entries rather than errors.
func (m *Menu) Days() ([5]*DayMenu, error) {
	var days [5]*DayMenu
	blobs := [5]datatypes.JSON{m.Monday, m.Tuesday, m.Wednesday, m.Thursday, m.Friday}
	for i, blob := range blobs {
		day, err := decodeDayMenu(blob)
		if err != nil {
			return days, fmt.Errorf("decode %s: %w", Weekdays[i], err)
		}
		days[i] = day
	}
	return days, nil
}

// Options decodes the daily options blob; a nil result means no options.
func (m *Menu) Options() (*DailyOptions, error) {
	if len(m.DailyOptions) == 0 || string(m.DailyOptions) == "null" {
		return nil, nil
	}
	var options DailyOptions
	if err := json.Unmarshal(m.DailyOptions, &options); err != nil {
		return nil, fmt.Errorf("decode daily options: %w", err)
	}
	return &options, nil
}

// SetDay encodes a DayMenu onto the named weekday column.
func (m *Menu) SetDay(weekday string, day *DayMenu) error {
	blob, err := encodeSlots(day)
	if err != nil {
		return fmt.Errorf("encode %s: %w", weekday, err)
	}
	switch weekday {
	case "monday":
		m.Monday = blob
	case "tuesday":
		m.Tuesday = blob
	case "wednesday":
		m.Wednesday = blob
	case "thursday":
		m.Thursday = blob
	case "friday":
		m.Friday = blob
	default:
		return fmt.Errorf("unknown weekday %q", weekday)
	}
	return nil
}

// SetOptions encodes the daily options blob.
func (m *Menu) SetOptions(options *DailyOptions) error {
	blob, err := encodeSlots(options)
	if err != nil {
		return fmt.Errorf("encode daily options: %w", err)
	}
	m.DailyOptions = blob
	return nil
}

func decodeDayMenu(blob datatypes.JSON) (*DayMenu, error) {
	if len(blob) == 0 || string(blob) == "null" {
		return nil, nil
	}
	var day DayMenu
	if err := json.Unmarshal(blob, &day); err != nil {
		return nil, err
	}
	return &day, nil
}

func encodeSlots(value any) (datatypes.JSON, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(encoded) == "null" {
		return nil, nil
	}
	return datatypes.JSON(encoded), nil
}
