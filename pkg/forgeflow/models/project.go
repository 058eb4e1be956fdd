package models

import (
	"time"
)

// Project is the top-level container owned by a user. Flows live inside
// projects; deleting a project cascades to its flows and their runs.
type Project struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Owner User   `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Flows []Flow `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"flows,omitempty"`
}
