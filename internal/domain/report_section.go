package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SectionStatusQueued     = "queued"
	SectionStatusGenerating = "generating"
	SectionStatusDone       = "done"
	SectionStatusFailed     = "failed"
)

// ReportSection is one generated section of an AI report, grounded on
// retrieved chunks. (report_id, section_index) is unique so regeneration
// overwrites rather than duplicates.
type ReportSection struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_report_sections_report_idx" json:"report_id"`
	SectionIndex int       `gorm:"column:section_index;not null;uniqueIndex:ux_report_sections_report_idx" json:"section_index"`

	Query   string `gorm:"type:text;not null" json:"query"`
	Content string `gorm:"type:text" json:"content,omitempty"`
	Status  string `gorm:"not null;default:'queued';index" json:"status"`
	Error   string `gorm:"column:error;type:text" json:"error,omitempty"`

	// Chunk ids used as grounding, for citation display.
	SourceChunkIDs datatypes.JSON `gorm:"type:jsonb;column:source_chunk_ids" json:"source_chunk_ids,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReportSection) TableName() string { return "report_sections" }
