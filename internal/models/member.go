package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "User"
	RoleHead  Role = "Head"
	RoleAdmin Role = "Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleHead, RoleAdmin:
		return true
	}
	return false
}

// CanTakeQueries reports whether members with this role may be assigned queries.
func (r Role) CanTakeQueries() bool {
	return r == RoleHead || r == RoleAdmin
}

type Member struct {
	ID              uint64    `gorm:"primarykey" json:"id"`
	Name            string    `gorm:"type:varchar(255);not null" json:"name"`
	Email           string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash    string    `gorm:"type:varchar(255);not null" json:"-"`
	PinHash         string    `gorm:"type:varchar(255)" json:"-"`
	Role            Role      `gorm:"type:varchar(20);not null;default:'User';index" json:"role"`
	QueriesTaken    int64     `gorm:"not null;default:0" json:"queries_taken"`
	QueriesResolved int64     `gorm:"not null;default:0" json:"queries_resolved"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
