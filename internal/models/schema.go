package models

import "time"

// ScheduleSchema is a named weekly schedule template. At most one schema is
// active (it governs the live timetable) and at most one carries a
// PendingFrom date (it becomes active for the upcoming week).
type ScheduleSchema struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Active      bool       `db:"active" json:"active"`
	PendingFrom *time.Time `db:"pending_from" json:"pending_from,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Pending reports whether the schema is scheduled to take effect next week.
func (s *ScheduleSchema) Pending() bool {
	return s.PendingFrom != nil
}

// SchemaRecord is a recurring occurrence template: a program at a weekday
// (0 = Monday .. 6 = Sunday) and time of day. Records are shared between
// schemas through a many-to-many association and are never mutated once
// created.
type SchemaRecord struct {
	ID        int64     `db:"id" json:"id"`
	ProgramID int64     `db:"program_id" json:"program_id"`
	Weekday   int       `db:"weekday" json:"weekday"`
	StartTime string    `db:"start_time" json:"start_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
