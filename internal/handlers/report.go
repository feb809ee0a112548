package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planhaus/planhaus-backend/internal/services"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) QueueSection(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}
	var req struct {
		SectionIndex   int         `json:"section_index"`
		Query          string      `json:"query"`
		DocumentSetIDs []uuid.UUID `json:"document_set_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	section, jobID, err := h.reportService.QueueSection(c.Request.Context(), reportID, req.SectionIndex, req.Query, req.DocumentSetIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"section": section, "job_id": jobID})
}

func (h *ReportHandler) GetSection(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}
	sectionIndex, err := strconv.Atoi(c.Param("sectionIndex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section index"})
		return
	}
	section, err := h.reportService.GetSection(c.Request.Context(), reportID, sectionIndex)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, section)
}
