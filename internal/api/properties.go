package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"estate/server/internal/estate"
	"estate/server/internal/geometry"
	"estate/server/internal/models"
	"estate/server/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ImportRequest struct {
	Properties []estate.PropertyInput `json:"properties"`
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var in estate.PropertyInput
	if !h.bindJSON(c, &in) {
		return
	}
	p, warnings, err := h.service.CreateProperty(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: p, Warnings: warnings})
}

func (h *Handler) GetProperty(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := h.service.GetProperty(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProperties(c *gin.Context) {
	filter, ok := propertyFilter(c)
	if !ok {
		return
	}
	properties, err := h.service.ListProperties(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

// GetPropertiesGeoJSON exports the matching listings with coordinates.
func (h *Handler) GetPropertiesGeoJSON(c *gin.Context) {
	filter, ok := propertyFilter(c)
	if !ok {
		return
	}
	properties, err := h.service.ListProperties(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, geometry.ListingFeatures(properties))
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch estate.PropertyPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	p, warnings, err := h.service.UpdateProperty(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Data: p, Warnings: warnings})
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteProperty(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DuplicateProperty(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := h.service.DuplicateProperty(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: p})
}

func (h *Handler) CancelProperty(c *gin.Context) {
	h.transition(c, h.service.CancelProperties)
}

func (h *Handler) MarkPropertySold(c *gin.Context) {
	h.transition(c, h.service.MarkPropertiesSold)
}

func (h *Handler) transition(c *gin.Context, action func(ctx context.Context, ids ...uint) error) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	p, err := h.service.GetProperty(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Data: p})
}

func (h *Handler) ListPropertyOffers(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	offers, err := h.service.ListOffers(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (h *Handler) GetPropertyAudit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	history, err := h.service.PropertyHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// ImportProperties splits the rows into batches and queues them for the
// background workers.
func (h *Handler) ImportProperties(c *gin.Context) {
	var req ImportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if len(req.Properties) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "properties must not be empty"})
		return
	}

	size := h.config.Import.MaxBatchSize
	if size < 1 {
		size = len(req.Properties)
	}
	actor := estate.ActorFrom(c.Request.Context())

	batchIDs := make([]string, 0, len(req.Properties)/size+1)
	for start := 0; start < len(req.Properties); start += size {
		end := min(start+size, len(req.Properties))
		batch := queue.Batch{
			ID:      uuid.NewString(),
			ActorID: actor,
			Rows:    req.Properties[start:end],
		}
		if err := h.imports.Push(batch); err != nil {
			status := http.StatusServiceUnavailable
			if !errors.Is(err, queue.ErrQueueFull) && !errors.Is(err, queue.ErrQueueClosed) {
				status = http.StatusInternalServerError
			}
			h.logger.WithError(err).WithField("queued_batches", len(batchIDs)).Warn("Failed to queue import batch")
			c.JSON(status, gin.H{"error": err.Error(), "batches": batchIDs})
			return
		}
		batchIDs = append(batchIDs, batch.ID)
	}

	h.logger.WithFields(logrus.Fields{
		"rows":    len(req.Properties),
		"batches": len(batchIDs),
	}).Info("Import queued")
	c.JSON(http.StatusAccepted, gin.H{"batches": batchIDs, "rows": len(req.Properties)})
}

func propertyFilter(c *gin.Context) (estate.PropertyFilter, bool) {
	filter := estate.PropertyFilter{
		State:          models.PropertyState(c.Query("state")),
		PostcodePrefix: c.Query("postcode"),
	}
	if v := c.Query("property_type_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property_type_id"})
			return filter, false
		}
		typeID := uint(id)
		filter.PropertyTypeID = &typeID
	}
	if v := c.Query("bbox"); v != "" {
		b, err := geometry.ParseBound(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return filter, false
		}
		filter.Bound = &b
	}
	return filter, true
}
