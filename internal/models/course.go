package models

import "time"

// Course is a catalog template from which batches are scheduled.
// Prices are whole BDT amounts.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Category        string    `db:"category" json:"category"`
	Description     string    `db:"description" json:"description"`
	RegularPrice    int64     `db:"regular_price" json:"regular_price"`
	DiscountPrice   *int64    `db:"discount_price" json:"discount_price,omitempty"`
	DefaultCapacity int       `db:"default_capacity" json:"default_capacity"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Category  string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
