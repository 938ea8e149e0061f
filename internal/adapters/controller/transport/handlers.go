package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/trigger"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
)

type Handler struct {
	dispatcher changeDispatcher
	poller     reminderPoller
}

func NewHandler(dispatcher changeDispatcher, poller reminderPoller) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		poller:     poller,
	}
}

// HandleChange accepts a document change pushed by the document store.
func (h *Handler) HandleChange(c *gin.Context) {
	var msg trigger.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.Handle(c.Request.Context(), msg); err != nil {
		if errors.Is(err, errorz.ErrInvalidChange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Store and delivery failures are retried by the next poll, not by the caller.
		c.JSON(http.StatusAccepted, gin.H{"status": "failed", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Reconcile runs one reminder poll synchronously.
func (h *Handler) Reconcile(c *gin.Context) {
	report, err := h.poller.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"report": report,
		})
		return
	}

	c.JSON(http.StatusOK, report)
}
