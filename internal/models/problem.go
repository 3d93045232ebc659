package models

import "time"

// Problem is a recurring jam pattern found by clustering history
type Problem struct {
	ID          int64         `json:"id" db:"id"`
	DayOfWeek   *time.Weekday `json:"dow,omitempty" db:"dow"` // nil when it recurs on several days
	Hour        int           `json:"hour" db:"hour"`
	Region      []int64       `json:"region" db:"region"` // sorted strip ids
	Description string        `json:"description" db:"description"`
}
