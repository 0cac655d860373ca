package api

import (
	"net/http"

	"estate/server/internal/auth"
	"estate/server/internal/estate"

	"github.com/gin-gonic/gin"
)

type TokenRequest struct {
	Login string `json:"login" binding:"required"`
}

func (h *Handler) CreatePropertyType(c *gin.Context) {
	var in estate.NamedInput
	if !h.bindJSON(c, &in) {
		return
	}
	t, err := h.service.CreatePropertyType(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: t})
}

func (h *Handler) ListPropertyTypes(c *gin.Context) {
	types, err := h.service.ListPropertyTypes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (h *Handler) CreateTag(c *gin.Context) {
	var in estate.NamedInput
	if !h.bindJSON(c, &in) {
		return
	}
	t, err := h.service.CreateTag(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: t})
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.service.ListTags(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *Handler) CreatePartner(c *gin.Context) {
	var in estate.PartnerInput
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.service.CreatePartner(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: p})
}

func (h *Handler) ListPartners(c *gin.Context) {
	partners, err := h.service.ListPartners(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in estate.UserInput
	if !h.bindJSON(c, &in) {
		return
	}
	u, err := h.service.CreateUser(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Data: u})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// IssueToken hands out a bearer token for an existing user. There are no
// passwords; the token only names the acting user for defaults and audit.
func (h *Handler) IssueToken(c *gin.Context) {
	if h.config.JWTSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "token issuing is disabled"})
		return
	}
	var req TokenRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.service.GetUserByLogin(c.Request.Context(), req.Login)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, err := auth.GenerateToken(h.config.JWTSecret, user, auth.DefaultTokenTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
