package models

// AttendanceRow aggregates bookings per program over a reporting period.
type AttendanceRow struct {
	ProgramID   int64  `db:"program_id" json:"program_id"`
	ProgramName string `db:"program_name" json:"program_name"`
	Bookings    int    `db:"bookings" json:"bookings"`
}
