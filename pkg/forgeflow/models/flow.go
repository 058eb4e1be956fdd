package models

import (
	"time"
)

// Flow is a named pipeline definition inside a project.
type Flow struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Project Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Runs    []FlowRun `gorm:"foreignKey:FlowID;constraint:OnDelete:CASCADE" json:"runs,omitempty"`
}
