package api

import (
	"net/http"
	"strconv"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TextHandler handles text queries and operator overrides
type TextHandler struct {
	services *service.Services
	repos    *repository.Repositories
	cfg      *config.Config
	log      zerolog.Logger
}

// NewTextHandler creates a new TextHandler
func NewTextHandler(services *service.Services, repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *TextHandler {
	return &TextHandler{
		services: services,
		repos:    repos,
		cfg:      cfg,
		log:      log.With().Str("handler", "text").Logger(),
	}
}

// StateRequest is the body of POST /v1/texts/:id/state
type StateRequest struct {
	State string `json:"state" binding:"required"`
}

// ListTexts handles GET /v1/texts with filter query params
func (h *TextHandler) ListTexts(c *gin.Context) {
	filter := &models.TextFilter{
		State:          models.TextState(c.Query("state")),
		SourceLanguage: c.Query("source_language"),
		TargetLanguage: c.Query("target_language"),
		Field:          c.Query("field"),
		ObjectType:     c.Query("object_type"),
		ObjectNotState: c.Query("object_not_state"),
		Order:          models.TextOrder(c.Query("order")),
	}
	if v := c.Query("object_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object_id"})
			return
		}
		filter.ObjectID = id
	}
	if c.Query("has_simplification") == "true" {
		filter.HasSimplification = true
	}
	if c.Query("not_locked") == "true" {
		filter.NotLocked = true
	}
	if c.Query("not_prevented") == "true" {
		filter.NotPrevented = true
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}
	if filter.State != "" && !models.ValidTextStates[filter.State] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state filter"})
		return
	}

	texts, err := h.services.Store.Query(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Text query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"texts": texts,
		"count": len(texts),
	})
}

// SetState handles POST /v1/texts/:id/state
// Illegal states are rejected here; the store itself also ignores them.
func (h *TextHandler) SetState(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid text id"})
		return
	}

	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}
	state := models.TextState(req.State)
	if !models.ValidTextStates[state] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be one of: to_simplify, processing, in_use, ignore"})
		return
	}

	ctx := c.Request.Context()
	record, err := h.repos.Text.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load text"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "text not found"})
		return
	}

	if err := h.services.Store.SetState(ctx, record, state); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update state"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ResetSimplifications handles DELETE /v1/simplifications
// Clears every stored simplification. Irreversible, hence the confirm
// guard.
func (h *TextHandler) ResetSimplifications(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pass confirm=true to clear all simplifications"})
		return
	}

	if err := h.services.Store.ResetAllSimplifications(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("Reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "simplifications cleared"})
}
