package reports

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

type ReportSectionRepo interface {
	UpsertQueued(dbc dbctx.Context, reportID uuid.UUID, sectionIndex int, query string) (*types.ReportSection, error)
	GetByReportAndIndex(dbc dbctx.Context, reportID uuid.UUID, sectionIndex int) (*types.ReportSection, error)
	MarkGenerating(dbc dbctx.Context, id uuid.UUID) error
	MarkDone(dbc dbctx.Context, id uuid.UUID, content string, sourceChunkIDs []uuid.UUID) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) error
}

type reportSectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportSectionRepo(db *gorm.DB, baseLog *logger.Logger) ReportSectionRepo {
	return &reportSectionRepo{db: db, log: baseLog.With("repo", "ReportSectionRepo")}
}

func (r *reportSectionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

// UpsertQueued resets the (report, index) slot to queued. Regeneration
// overwrites the previous section rather than creating a sibling row.
func (r *reportSectionRepo) UpsertQueued(dbc dbctx.Context, reportID uuid.UUID, sectionIndex int, query string) (*types.ReportSection, error) {
	if reportID == uuid.Nil {
		return nil, fmt.Errorf("missing report id")
	}
	section := &types.ReportSection{
		ID:           uuid.New(),
		ReportID:     reportID,
		SectionIndex: sectionIndex,
		Query:        query,
		Status:       types.SectionStatusQueued,
	}
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "report_id"}, {Name: "section_index"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"query":      query,
				"status":     types.SectionStatusQueued,
				"error":      "",
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(section).Error
	if err != nil {
		return nil, err
	}
	return r.GetByReportAndIndex(dbc, reportID, sectionIndex)
}

func (r *reportSectionRepo) GetByReportAndIndex(dbc dbctx.Context, reportID uuid.UUID, sectionIndex int) (*types.ReportSection, error) {
	var s types.ReportSection
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("report_id = ? AND section_index = ?", reportID, sectionIndex).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reportSectionRepo) MarkGenerating(dbc dbctx.Context, id uuid.UUID) error {
	return r.updateFields(dbc, id, map[string]interface{}{
		"status": types.SectionStatusGenerating,
	})
}

func (r *reportSectionRepo) MarkDone(dbc dbctx.Context, id uuid.UUID, content string, sourceChunkIDs []uuid.UUID) error {
	raw, _ := json.Marshal(sourceChunkIDs)
	return r.updateFields(dbc, id, map[string]interface{}{
		"status":           types.SectionStatusDone,
		"content":          content,
		"error":            "",
		"source_chunk_ids": datatypes.JSON(raw),
	})
}

func (r *reportSectionRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) error {
	return r.updateFields(dbc, id, map[string]interface{}{
		"status": types.SectionStatusFailed,
		"error":  message,
	})
}

func (r *reportSectionRepo) updateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing section id")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.ReportSection{}).
		Where("id = ?", id).
		Updates(updates).Error
}
