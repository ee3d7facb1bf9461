package models

import "time"

// Category groups training programs (e.g. cardio, strength, stretching).
// Names are unique.
type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Placement is a room or hall classes take place in. Names are unique.
type Placement struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Instructor is a coach leading training programs.
type Instructor struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Program is a training program offered by the club. Schedule records and
// bookings reference programs by id.
type Program struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	CategoryID   int64     `db:"category_id" json:"category_id"`
	PlacementID  int64     `db:"placement_id" json:"placement_id"`
	InstructorID int64     `db:"instructor_id" json:"instructor_id"`
	PlaceLimit   int       `db:"place_limit" json:"place_limit"`
	Paid         bool      `db:"paid" json:"paid"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramFilter defines filters supported by the program list endpoint.
type ProgramFilter struct {
	CategoryID   int64
	InstructorID int64
	Page         int
	PageSize     int
}
