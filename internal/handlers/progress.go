package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/realtime"
)

// ProgressHandler streams ingestion progress for one document set over SSE.
type ProgressHandler struct {
	bus realtime.ProgressBus
}

func NewProgressHandler(bus realtime.ProgressBus) *ProgressHandler {
	return &ProgressHandler{bus: bus}
}

func (h *ProgressHandler) Stream(c *gin.Context) {
	setID, err := uuid.Parse(c.Param("setId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set id"})
		return
	}

	events, cancel, err := h.bus.Subscribe(c.Request.Context(), setID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				return true
			}
			c.SSEvent("progress", string(payload))
			return true
		}
	})
}
