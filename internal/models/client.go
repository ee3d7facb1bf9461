package models

import "time"

// Client is a club member who can be booked into class occurrences.
type Client struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClientFilter defines filters supported by the client list endpoint.
type ClientFilter struct {
	Search   string
	Page     int
	PageSize int
}
