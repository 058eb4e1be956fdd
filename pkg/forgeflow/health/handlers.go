package health

import (
	"net/http"
	"os"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/database"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles health check requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new health handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Check reports service health and store reachability. A degraded store is
// reported in the body rather than as a non-200, so load balancers keep the
// process in rotation while it reconnects.
func (h *Handler) Check(c *gin.Context) {
	dbOK := true
	var dbError string
	if err := database.Ping(h.db); err != nil {
		dbOK = false
		dbError = err.Error()
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"env":       env,
		"db_ok":     dbOK,
		"db_error":  dbError,
	})
}

// RegisterRoutes registers the health route
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Check)
}
