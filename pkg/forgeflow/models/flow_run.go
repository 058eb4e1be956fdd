package models

import (
	"time"
)

// RunStatus represents the lifecycle state of a flow run.
//
// Lifecycle:
//
//	pending → running → completed
//	                  → failed
//	                  → cancelled
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the status is final.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
// Terminal states have no successors.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning
	case RunStatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// FlowRun is an execution record for a flow. Runs are append-only: nothing
// in the current system ever executes them, so every run is created pending
// and the later transitions exist only as state-machine contract.
type FlowRun struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	FlowID      uint       `gorm:"not null;index" json:"flow_id"`
	Status      RunStatus  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Relationships
	Flow Flow `gorm:"foreignKey:FlowID" json:"flow,omitempty"`
}
