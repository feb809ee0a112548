package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
)

// QueueAdminHandler exposes operator controls for the job queues. These
// routes belong behind an internal-only gateway.
type QueueAdminHandler struct {
	queue queue.Client
}

func NewQueueAdminHandler(q queue.Client) *QueueAdminHandler {
	return &QueueAdminHandler{queue: q}
}

func knownQueue(name string) bool {
	switch name {
	case queue.QueueDocumentProcessing, queue.QueueChunkEmbedding, queue.QueueReportGeneration:
		return true
	}
	return false
}

func (h *QueueAdminHandler) Stats(c *gin.Context) {
	stats, err := h.queue.GetQueueStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": stats})
}

func (h *QueueAdminHandler) Pause(c *gin.Context) {
	name := c.Param("queue")
	if !knownQueue(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	if err := h.queue.PauseQueue(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": name})
}

func (h *QueueAdminHandler) Resume(c *gin.Context) {
	name := c.Param("queue")
	if !knownQueue(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	if err := h.queue.ResumeQueue(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": name})
}

func (h *QueueAdminHandler) Drain(c *gin.Context) {
	name := c.Param("queue")
	if !knownQueue(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	removed, err := h.queue.DrainQueue(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drained": name, "removed": removed})
}
