package models

import "time"

// TimetableEntry is one concrete occurrence of the active schema's week,
// enriched for the public timetable view.
type TimetableEntry struct {
	RecordID    int64     `json:"record_id"`
	ProgramID   int64     `json:"program_id"`
	ProgramName string    `json:"program_name"`
	Weekday     int       `json:"weekday"`
	StartsAt    time.Time `json:"starts_at"`
	PlaceLimit  int       `json:"place_limit"`
	Booked      int       `json:"booked"`
}

// Timetable is the materialized week governed by the active schema.
type Timetable struct {
	SchemaID   int64            `json:"schema_id"`
	SchemaName string           `json:"schema_name"`
	WeekStart  time.Time        `json:"week_start"`
	Entries    []TimetableEntry `json:"entries"`
}
