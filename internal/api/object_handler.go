package api

import (
	"net/http"
	"strconv"

	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ObjectHandler handles per-object endpoints: intake, run trigger,
// progress polling and crash recovery.
type ObjectHandler struct {
	services *service.Services
	repos    *repository.Repositories
	log      zerolog.Logger
}

// NewObjectHandler creates a new ObjectHandler
func NewObjectHandler(services *service.Services, repos *repository.Repositories, log zerolog.Logger) *ObjectHandler {
	return &ObjectHandler{
		services: services,
		repos:    repos,
		log:      log.With().Str("handler", "object").Logger(),
	}
}

// SimplifyRequest is the body of POST /v1/objects/:type/:id/simplify
type SimplifyRequest struct {
	Limit int  `json:"limit"`
	Init  bool `json:"init"`
}

// RecoveryRequest is the body of POST /v1/objects/:type/:id/recovery
type RecoveryRequest struct {
	Action string `json:"action" binding:"required"` // retry or ignore
}

// Extract handles POST /v1/objects/:type/:id/extract
// Parses the object into fragments and stores them for simplification.
func (h *ObjectHandler) Extract(c *gin.Context) {
	obj, ok := h.loadObject(c)
	if !ok {
		return
	}

	count, err := h.services.Intake.MakeSimplifiable(c.Request.Context(), obj)
	if err != nil {
		h.log.Error().Err(err).Int64("object_id", obj.ID).Msg("Extraction failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object_id":   obj.ID,
		"object_type": obj.Type,
		"fragments":   count,
	})
}

// Simplify handles POST /v1/objects/:type/:id/simplify
// Triggers one batch page; callers repeat while the run stays running.
func (h *ObjectHandler) Simplify(c *gin.Context) {
	obj, ok := h.loadObject(c)
	if !ok {
		return
	}

	req := SimplifyRequest{Init: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	processed, result, err := h.services.Orchestrator.RunBatch(c.Request.Context(), obj, service.RunOptions{
		Limit: req.Limit,
		Init:  req.Init,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("object_id", obj.ID).Msg("Run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simplification run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": processed,
		"result":    result,
	})
}

// GetProgress handles GET /v1/objects/:type/:id/progress
func (h *ObjectHandler) GetProgress(c *gin.Context) {
	obj, ok := h.loadObject(c)
	if !ok {
		return
	}

	progress, err := h.services.Orchestrator.Progress(c.Request.Context(), obj)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read progress"})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Recover handles POST /v1/objects/:type/:id/recovery
// Resolves records stuck in processing after a crashed run.
func (h *ObjectHandler) Recover(c *gin.Context) {
	obj, ok := h.loadObject(c)
	if !ok {
		return
	}

	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required (retry or ignore)"})
		return
	}

	count, err := h.services.Orchestrator.RecoverStale(c.Request.Context(), obj, req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"action":  req.Action,
		"records": count,
	})
}

// loadObject resolves the :type/:id pair; replies 404/400 itself
func (h *ObjectHandler) loadObject(c *gin.Context) (*models.ContentObject, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object id"})
		return nil, false
	}
	objectType := c.Param("type")

	obj, err := h.repos.Object.GetByID(c.Request.Context(), id, objectType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load object"})
		return nil, false
	}
	if obj == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return nil, false
	}
	return obj, true
}
