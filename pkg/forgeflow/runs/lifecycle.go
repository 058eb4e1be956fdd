package runs

import (
	"fmt"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/metrics"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/models"
	"gorm.io/gorm"
)

// Create inserts a new run record for a flow. Runs always start pending with
// no started/completed timestamps; creation is the only lifecycle step the
// API surface triggers today, since nothing in the system executes flows.
func Create(db *gorm.DB, flowID uint) (*models.FlowRun, error) {
	run := models.FlowRun{
		FlowID: flowID,
		Status: models.RunStatusPending,
	}
	if err := db.Create(&run).Error; err != nil {
		return nil, err
	}
	metrics.RunsCreated.Inc()
	return &run, nil
}

// Transition moves a run to the next status and persists it.
//
// Legal moves are pending→running and running→{completed, failed, cancelled}.
// Entering running stamps started_at; entering a terminal state stamps
// completed_at. Terminal states have no way out: any attempt fails with
// ErrInvalidTransition and the record is left untouched.
func Transition(db *gorm.DB, run *models.FlowRun, next models.RunStatus, now time.Time) error {
	if !run.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, run.Status, next)
	}

	updates := map[string]interface{}{"status": next}
	switch {
	case next == models.RunStatusRunning:
		updates["started_at"] = now
	case next.IsTerminal():
		updates["completed_at"] = now
	}

	if err := db.Model(&models.FlowRun{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
		return err
	}

	run.Status = next
	if next == models.RunStatusRunning {
		run.StartedAt = &now
	} else {
		run.CompletedAt = &now
	}
	return nil
}
