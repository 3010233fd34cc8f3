package models

import (
	"time"
)

type QueryStatus string

const (
	QueryStatusUnassigned QueryStatus = "Unassigned"
	QueryStatusAssigned   QueryStatus = "Assigned"
	QueryStatusResolved   QueryStatus = "Resolved"
	QueryStatusDismantled QueryStatus = "Dismantled"
)

// Terminal reports whether no further transition is allowed from s.
func (s QueryStatus) Terminal() bool {
	return s == QueryStatusResolved || s == QueryStatusDismantled
}

type Query struct {
	ID           uint64      `gorm:"primarykey" json:"id"`
	Issue        string      `gorm:"type:text;not null" json:"issue"`
	AskedByID    uint64      `gorm:"not null;index" json:"asked_by"`
	Status       QueryStatus `gorm:"type:varchar(20);not null;default:'Unassigned';index" json:"status"`
	AssignedToID *uint64     `gorm:"index" json:"assigned_to"`
	Reply        string      `gorm:"type:text" json:"reply"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	// Relations
	AskedBy    Member  `gorm:"foreignKey:AskedByID" json:"-"`
	AssignedTo *Member `gorm:"foreignKey:AssignedToID" json:"-"`
}
