package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nurcrm/backend/internal/infrastructure/persistence"
)

// SystemHandler handles health and readiness endpoints
type SystemHandler struct {
	BaseHandler
	db      *persistence.Database
	version string
	started time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db *persistence.Database, version string) *SystemHandler {
	return &SystemHandler{
		db:      db,
		version: version,
		started: time.Now(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// RegisterRootRoutes registers unversioned probes on the engine
func (h *SystemHandler) RegisterRootRoutes(engine *gin.Engine) {
	engine.GET("/health", h.Health)
	engine.GET("/healthz", h.Health)
}

// Health reports process and database health
func (h *SystemHandler) Health(c *gin.Context) {
	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			dbStatus = "unreachable"
			overall = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"version":  h.version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"database": dbStatus,
	})
}
