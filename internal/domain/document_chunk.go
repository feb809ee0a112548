package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/vector"
)

// Hierarchy levels for document chunks. The parent chain is strictly
// level-monotonic: a chunk's parent sits exactly one level above it.
const (
	LevelDocument   = 0
	LevelSection    = 1
	LevelSubsection = 2
	LevelClause     = 3
)

type DocumentChunk struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	ParentChunkID *uuid.UUID     `gorm:"type:uuid;index" json:"parent_chunk_id,omitempty"`
	ParentChunk   *DocumentChunk `gorm:"foreignKey:ParentChunkID;references:ID" json:"-"`

	HierarchyLevel int    `gorm:"column:hierarchy_level;not null" json:"hierarchy_level"`
	HierarchyPath  string `gorm:"column:hierarchy_path;not null;index" json:"hierarchy_path"`
	SectionTitle   string `gorm:"column:section_title" json:"section_title,omitempty"`
	ClauseNumber   string `gorm:"column:clause_number" json:"clause_number,omitempty"`

	Content   string        `gorm:"column:content;type:text;not null" json:"content"`
	Embedding vector.Vector `gorm:"column:embedding" json:"-"`

	TokenCount int `gorm:"column:token_count;not null;default:0" json:"token_count"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DocumentChunk) TableName() string { return "document_chunks" }
