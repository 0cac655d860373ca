package api

import (
	"net/http"

	"estate/server/internal/estate"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateOffer(c *gin.Context) {
	var in estate.OfferInput
	if !h.bindJSON(c, &in) {
		return
	}
	o, err := h.service.CreateOffer(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: o})
}

func (h *Handler) GetOffer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	o, err := h.service.GetOffer(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateOffer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch estate.OfferPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	o, err := h.service.UpdateOffer(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Data: o})
}

func (h *Handler) DeleteOffer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteOffer(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AcceptOffer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	o, err := h.service.AcceptOffer(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Data: o})
}
