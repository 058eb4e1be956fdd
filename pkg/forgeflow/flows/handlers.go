package flows

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/auth"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/models"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/runs"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles flow requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new flows handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateFlowRequest represents the request to create a flow
type CreateFlowRequest struct {
	ProjectID   uint   `json:"project_id" binding:"required"`
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description"`
}

// UpdateFlowRequest represents the request to update a flow
type UpdateFlowRequest struct {
	Name        string  `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
}

// FlowResponse represents a flow in API responses
type FlowResponse struct {
	ID          uint   `json:"id"`
	ProjectID   uint   `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func flowToResponse(flow models.Flow) FlowResponse {
	return FlowResponse{
		ID:          flow.ID,
		ProjectID:   flow.ProjectID,
		Name:        flow.Name,
		Description: flow.Description,
		CreatedAt:   flow.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   flow.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ownedFlow loads a flow only if its project belongs to userID. The join
// keeps the check atomic: a concurrently deleted project makes the flow
// unreachable rather than orphan-readable.
func (h *Handler) ownedFlow(flowID uint64, userID uint) (*models.Flow, error) {
	var flow models.Flow
	err := h.db.
		Joins("JOIN projects ON projects.id = flows.project_id").
		Where("flows.id = ? AND projects.owner_id = ?", flowID, userID).
		First(&flow).Error
	if err != nil {
		return nil, err
	}
	return &flow, nil
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

// Create creates a new flow in a project owned by the authenticated user
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Verify the project exists and belongs to the caller
	var project models.Project
	if err := h.db.Where("id = ? AND owner_id = ?", req.ProjectID, userID).First(&project).Error; err != nil {
		respondLookupError(c, err)
		return
	}

	flow := models.Flow{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
	}

	if err := h.db.Create(&flow).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create flow"})
		return
	}

	c.JSON(http.StatusCreated, flowToResponse(flow))
}

// ListForProject returns all flows in a project owned by the authenticated user
func (h *Handler) ListForProject(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	var project models.Project
	if err := h.db.Where("id = ? AND owner_id = ?", projectID, userID).First(&project).Error; err != nil {
		respondLookupError(c, err)
		return
	}

	var flowList []models.Flow
	if err := h.db.Where("project_id = ?", projectID).Order("created_at DESC").Find(&flowList).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flows"})
		return
	}

	responses := make([]FlowResponse, len(flowList))
	for i, flow := range flowList {
		responses[i] = flowToResponse(flow)
	}

	c.JSON(http.StatusOK, responses)
}

// Get returns a single flow owned by the authenticated user
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	flowID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid flow ID"})
		return
	}

	flow, err := h.ownedFlow(flowID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, flowToResponse(*flow))
}

// Update modifies a flow owned by the authenticated user
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	flowID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid flow ID"})
		return
	}

	var req UpdateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flow, err := h.ownedFlow(flowID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	if req.Name != "" {
		flow.Name = req.Name
	}
	if req.Description != nil {
		flow.Description = *req.Description
	}

	if err := h.db.Save(flow).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flow"})
		return
	}

	c.JSON(http.StatusOK, flowToResponse(*flow))
}

// Delete removes a flow owned by the authenticated user, along with its runs
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	flowID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid flow ID"})
		return
	}

	flow, err := h.ownedFlow(flowID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("flow_id = ?", flow.ID).Delete(&models.FlowRun{}).Error; err != nil {
			return err
		}
		return tx.Delete(flow).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete flow"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Flow deleted"})
}

// Run creates a new run record for a flow owned by the authenticated user.
// The record is created pending; nothing executes it.
func (h *Handler) Run(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	flowID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid flow ID"})
		return
	}

	flow, err := h.ownedFlow(flowID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	run, err := runs.Create(h.db, flow.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create run"})
		return
	}

	c.JSON(http.StatusCreated, runs.ToResponse(*run))
}

// RegisterRoutes registers flow routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/flows", h.Create)
	rg.GET("/projects/:id/flows", h.ListForProject)
	rg.GET("/flows/:id", h.Get)
	rg.PATCH("/flows/:id", h.Update)
	rg.DELETE("/flows/:id", h.Delete)
	rg.POST("/flows/:id/run", h.Run)
}
