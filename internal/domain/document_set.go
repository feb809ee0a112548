package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RepoType classifies what kind of document repository a set belongs to.
type RepoType string

const (
	RepoTypeProject      RepoType = "project"
	RepoTypeDueDiligence RepoType = "due_diligence"
	RepoTypeHouse        RepoType = "house"
	RepoTypeApartments   RepoType = "apartments"
	RepoTypeFitout       RepoType = "fitout"
	RepoTypeIndustrial   RepoType = "industrial"
	RepoTypeRemediation  RepoType = "remediation"
)

func (t RepoType) Valid() bool {
	switch t {
	case RepoTypeProject, RepoTypeDueDiligence, RepoTypeHouse, RepoTypeApartments,
		RepoTypeFitout, RepoTypeIndustrial, RepoTypeRemediation:
		return true
	}
	return false
}

// DocumentSet is a named collection of documents providing retrieval scope.
// ProjectID is nil for global sets; global sets require an organization and
// are unique per (organization_id, repo_type).
type DocumentSet struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Discipline  string `gorm:"column:discipline" json:"discipline,omitempty"`

	IsDefault           bool           `gorm:"column:is_default;not null;default:false" json:"is_default"`
	AutoSyncCategoryIDs datatypes.JSON `gorm:"type:jsonb;column:auto_sync_category_ids" json:"auto_sync_category_ids,omitempty"`

	RepoType       RepoType   `gorm:"column:repo_type;not null;default:'project'" json:"repo_type"`
	IsGlobal       bool       `gorm:"column:is_global;not null;default:false" json:"is_global"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`

	Members []*DocumentSetMember `gorm:"foreignKey:DocumentSetID" json:"members,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DocumentSet) TableName() string { return "document_sets" }

// Sync states for a document inside a set. Strict machine:
// pending -> processing -> synced | failed.
const (
	SyncStatusPending    = "pending"
	SyncStatusProcessing = "processing"
	SyncStatusSynced     = "synced"
	SyncStatusFailed     = "failed"
)

// DocumentSetMember links a document to a set and tracks ingestion state.
// (document_set_id, document_id) is unique.
type DocumentSetMember struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentSetID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:ux_document_set_members_set_doc" json:"document_set_id"`
	DocumentSet   *DocumentSet `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentSetID;references:ID" json:"-"`

	DocumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_document_set_members_set_doc;index" json:"document_id"`

	SyncStatus    string     `gorm:"column:sync_status;not null;default:'pending';index" json:"sync_status"`
	ErrorMessage  string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	SyncedAt      *time.Time `gorm:"column:synced_at" json:"synced_at,omitempty"`
	ChunksCreated int        `gorm:"column:chunks_created;not null;default:0" json:"chunks_created"`
	Progress      int        `gorm:"column:progress;not null;default:0" json:"progress"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DocumentSetMember) TableName() string { return "document_set_members" }
