package projects

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

// Handler handles project requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new projects handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateProjectRequest represents the request to create a project
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// UpdateProjectRequest represents the request to update a project
type UpdateProjectRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID        uint   `json:"id"`
	OwnerID   uint   `json:"owner_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func projectToResponse(project models.Project) ProjectResponse {
	return ProjectResponse{
		ID:        project.ID,
		OwnerID:   project.OwnerID,
		Name:      project.Name,
		CreatedAt: project.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: project.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ownedProject loads a project only if it belongs to userID. Missing and
// not-owned are indistinguishable to the caller.
func (h *Handler) ownedProject(projectID uint64, userID uint) (*models.Project, error) {
	var project models.Project
	err := h.db.Where("id = ? AND owner_id = ?", projectID, userID).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
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

// Create creates a new project owned by the authenticated user
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := models.Project{
		OwnerID: userID,
		Name:    req.Name,
	}

	if err := h.db.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, projectToResponse(project))
}

// List returns all projects owned by the authenticated user
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var projectList []models.Project
	if err := h.db.Where("owner_id = ?", userID).Order("created_at DESC").Find(&projectList).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch projects"})
		return
	}

	responses := make([]ProjectResponse, len(projectList))
	for i, project := range projectList {
		responses[i] = projectToResponse(project)
	}

	c.JSON(http.StatusOK, responses)
}

// Get returns a single project owned by the authenticated user
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	project, err := h.ownedProject(projectID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, projectToResponse(*project))
}

// Update renames a project owned by the authenticated user
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.ownedProject(projectID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	project.Name = req.Name
	if err := h.db.Save(project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, projectToResponse(*project))
}

// Delete removes a project owned by the authenticated user. Flows and runs
// under the project go with it.
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	project, err := h.ownedProject(projectID, userID)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	// Delete the whole subtree in one transaction so a concurrent request
	// never observes a half-removed chain.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("flow_id IN (?)",
			tx.Model(&models.Flow{}).Select("id").Where("project_id = ?", project.ID),
		).Delete(&models.FlowRun{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Flow{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// RegisterRoutes registers project routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects", h.Create)
	rg.GET("/projects", h.List)
	rg.GET("/projects/:id", h.Get)
	rg.PATCH("/projects/:id", h.Update)
	rg.DELETE("/projects/:id", h.Delete)
}
