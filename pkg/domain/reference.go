package domain

import "time"

// ReferenceStatus is the lifecycle state of a reference.
type ReferenceStatus string

const (
	// ReferenceActive references are included in executor context.
	ReferenceActive ReferenceStatus = "active"
	// ReferenceExpired references are hidden from executor context but
	// remain visible in audit views.
	ReferenceExpired ReferenceStatus = "expired"
)

// Reference points at an external document or memo a node depends on.
type Reference struct {
	Target      string          `json:"target"`
	Description string          `json:"description,omitempty"`
	Status      ReferenceStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
