package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/services"
)

type DocumentSetHandler struct {
	setService services.DocumentSetService
}

func NewDocumentSetHandler(setService services.DocumentSetService) *DocumentSetHandler {
	return &DocumentSetHandler{setService: setService}
}

func (h *DocumentSetHandler) Create(c *gin.Context) {
	var req struct {
		Name                string      `json:"name"`
		RepoType            string      `json:"repo_type"`
		ProjectID           *uuid.UUID  `json:"project_id"`
		IsDefault           bool        `json:"is_default"`
		IsGlobal            bool        `json:"is_global"`
		OrganizationID      *uuid.UUID  `json:"organization_id"`
		AutoSyncCategoryIDs []uuid.UUID `json:"auto_sync_category_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	set := types.DocumentSet{
		Name:           req.Name,
		RepoType:       types.RepoType(req.RepoType),
		ProjectID:      req.ProjectID,
		IsDefault:      req.IsDefault,
		IsGlobal:       req.IsGlobal,
		OrganizationID: req.OrganizationID,
	}
	if len(req.AutoSyncCategoryIDs) > 0 {
		raw, err := json.Marshal(req.AutoSyncCategoryIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auto_sync_category_ids"})
			return
		}
		set.AutoSyncCategoryIDs = datatypes.JSON(raw)
	}
	created, err := h.setService.CreateSet(c.Request.Context(), &set)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *DocumentSetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("setId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set id"})
		return
	}
	set, err := h.setService.GetSet(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document set not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *DocumentSetHandler) ListByProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	sets, err := h.setService.ListSetsByProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_sets": sets})
}

func (h *DocumentSetHandler) AddDocument(c *gin.Context) {
	setID, err := uuid.Parse(c.Param("setId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set id"})
		return
	}
	var req struct {
		DocumentID  uuid.UUID `json:"document_id"`
		Filename    string    `json:"filename"`
		StoragePath string    `json:"storage_path"`
		ForceNewRun bool      `json:"force_new_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.DocumentID == uuid.Nil || req.Filename == "" || req.StoragePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_id, filename and storage_path are required"})
		return
	}
	mode := queue.DedupeByDocument
	if req.ForceNewRun {
		mode = queue.ForceNewRun
	}
	member, jobID, err := h.setService.AddDocument(c.Request.Context(), setID, services.AddDocumentInput{
		DocumentID:  req.DocumentID,
		Filename:    req.Filename,
		StoragePath: req.StoragePath,
		Mode:        mode,
	})
	if err != nil {
		if errors.Is(err, documents.ErrMemberExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "document already in this set"})
			return
		}
		if errors.Is(err, services.ErrSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document set not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"member": member, "job_id": jobID})
}

func (h *DocumentSetHandler) ListMembers(c *gin.Context) {
	setID, err := uuid.Parse(c.Param("setId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set id"})
		return
	}
	members, err := h.setService.ListMembers(c.Request.Context(), setID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *DocumentSetHandler) RetryMember(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}
	var req struct {
		Filename    string `json:"filename"`
		StoragePath string `json:"storage_path"`
		ForceNewRun bool   `json:"force_new_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mode := queue.DedupeByDocument
	if req.ForceNewRun {
		mode = queue.ForceNewRun
	}
	jobID, err := h.setService.RetryMember(c.Request.Context(), memberID, req.Filename, req.StoragePath, mode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMemberNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		case errors.Is(err, services.ErrNotFailed):
			c.JSON(http.StatusConflict, gin.H{"error": "member is not in a failed state"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}
