package runs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/auth"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles flow run requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new runs handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RunResponse represents a flow run in API responses
type RunResponse struct {
	ID          uint    `json:"id"`
	FlowID      uint    `json:"flow_id"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	StartedAt   *string `json:"started_at"`
	CompletedAt *string `json:"completed_at"`
}

// ToResponse converts a run record to its API shape.
func ToResponse(run models.FlowRun) RunResponse {
	formatTime := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.UTC().Format(time.RFC3339)
		return &s
	}
	return RunResponse{
		ID:          run.ID,
		FlowID:      run.FlowID,
		Status:      string(run.Status),
		CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
		StartedAt:   formatTime(run.StartedAt),
		CompletedAt: formatTime(run.CompletedAt),
	}
}

// ownedRun loads a run only if its flow's project belongs to userID.
// Missing and not-owned are indistinguishable to the caller.
func (h *Handler) ownedRun(runID uint64, userID uint) (*models.FlowRun, error) {
	var run models.FlowRun
	err := h.db.
		Joins("JOIN flows ON flows.id = flow_runs.flow_id").
		Joins("JOIN projects ON projects.id = flows.project_id").
		Where("flow_runs.id = ? AND projects.owner_id = ?", runID, userID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// respondLookupError maps an ownership-lookup failure to a response.
// A missing row gets the uniform 404; anything else is a store problem
// and must not masquerade as "not found".
func respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found or access denied"})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available"})
}

// ListForFlow returns all runs for a flow the caller owns, newest first
func (h *Handler) ListForFlow(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	flowID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid flow ID"})
		return
	}

	// Ownership gate on the flow before listing anything under it
	var flow models.Flow
	err = h.db.
		Joins("JOIN projects ON projects.id = flows.project_id").
		Where("flows.id = ? AND projects.owner_id = ?", flowID, userID).
		First(&flow).Error
	if err != nil {
		respondLookupError(c, err)
		return
	}

	var runsList []models.FlowRun
	if err := h.db.Where("flow_id = ?", flowID).Order("created_at DESC").Find(&runsList).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}

	responses := make([]RunResponse, len(runsList))
	for i, run := range runsList {
		responses[i] = ToResponse(run)
	}

	c.JSON(http.StatusOK, responses)
}

// Get returns a single run the caller owns
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	runID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.ownedRun(runID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(*run))
}

// RegisterRoutes registers run routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/flows/:id/runs", h.ListForFlow)
	rg.GET("/runs/:id", h.Get)
}
