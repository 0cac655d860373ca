package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"estate/server/config"
	"estate/server/internal/estate"
	"estate/server/internal/processor"
	"estate/server/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service   *estate.Service
	imports   *queue.ImportQueue
	processor *processor.BatchProcessor
	config    *config.Config
	logger    *logrus.Logger
}

// envelope wraps the result of a create or update together with its warnings
type envelope struct {
	Data     any              `json:"data"`
	Warnings []estate.Warning `json:"warnings,omitempty"`
}

func NewHandler(service *estate.Service, imports *queue.ImportQueue, processor *processor.BatchProcessor, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		service:   service,
		imports:   imports,
		processor: processor,
		config:    cfg,
		logger:    logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"import": h.processor.Stats(),
	})
}

// respondError maps service errors to HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	var domainErr *estate.DomainError
	var validationErr *estate.ValidationError

	switch {
	case errors.As(err, &domainErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": domainErr.Message})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case estate.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.WithError(err).Debug("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}
