package models

import "time"

// StaffRole represents the available roles for the RBAC system.
type StaffRole string

const (
	RoleAdmin    StaffRole = "admin"
	RoleOperator StaffRole = "operator"
)

// Staff models a back-office account (administrator or front-desk operator).
type Staff struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         StaffRole `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
