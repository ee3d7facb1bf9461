package models

import "time"

// BookedClass is one client's reservation for one concrete class occurrence.
// The occurrence is identified by the (program, starts_at) pair a schema
// record produces when materialized for a calendar week; bookings are not
// tied to the schema or record that produced the occurrence.
type BookedClass struct {
	ClientID  int64     `db:"client_id" json:"client_id"`
	ProgramID int64     `db:"program_id" json:"program_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassKey identifies a concrete class occurrence. Reconciliation removes
// booking rows by occurrence key regardless of client.
type ClassKey struct {
	ProgramID int64     `db:"program_id" json:"program_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
}

// OccurrenceBookings counts bookings per concrete occurrence.
type OccurrenceBookings struct {
	ProgramID int64     `db:"program_id" json:"program_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	Booked    int       `db:"booked" json:"booked"`
}
