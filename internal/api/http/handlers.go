package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmbus/internal/admin"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmbus/internal/ipc"
)

// Handlers serves the object endpoints
type Handlers struct {
	manager *admin.Manager
	logger  *logging.Logger
	started time.Time
}

// NewHandlers creates the object handlers
func NewHandlers(manager *admin.Manager, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{manager: manager, logger: logger, started: time.Now()}
}

// Health reports liveness and the namespace being served
func (h *Handlers) Health(c *gin.Context) {
	ns := h.manager.Namespace()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"dir":       ns.Dir,
		"prefix":    ns.Prefix,
		"uptime_ms": time.Since(h.started).Milliseconds(),
	})
}

// ListObjects lists kernel objects, optionally filtered by ?pattern=
func (h *Handlers) ListObjects(c *gin.Context) {
	pattern := c.Query("pattern")
	objects, err := h.manager.List(pattern)
	if err != nil {
		h.logger.Warn("List failed", zap.String("pattern", pattern), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if objects == nil {
		objects = []admin.Object{}
	}
	c.JSON(http.StatusOK, gin.H{
		"objects": objects,
		"count":   len(objects),
	})
}

// GetObject inspects one name as a segment and as a topic
func (h *Handlers) GetObject(c *gin.Context) {
	name := c.Param("name")
	report, err := h.manager.Inspect(name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.Is(err, ipc.ErrObjectMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ipc.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Inspect failed", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
