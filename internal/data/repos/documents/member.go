package documents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

// errorMessageLimit keeps provider stack traces from bloating the row.
const errorMessageLimit = 2000

type DocumentSetMemberRepo interface {
	Create(dbc dbctx.Context, member *types.DocumentSetMember) (*types.DocumentSetMember, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentSetMember, error)
	GetBySetAndDocument(dbc dbctx.Context, setID, documentID uuid.UUID) (*types.DocumentSetMember, error)
	ListBySet(dbc dbctx.Context, setID uuid.UUID) ([]*types.DocumentSetMember, error)
	MarkProcessing(dbc dbctx.Context, id uuid.UUID) error
	SetProgress(dbc dbctx.Context, id uuid.UUID, progress int) error
	MarkSynced(dbc dbctx.Context, id uuid.UUID, chunksCreated int) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) error
}

var ErrMemberExists = errors.New("document already a member of this set")

type documentSetMemberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentSetMemberRepo(db *gorm.DB, baseLog *logger.Logger) DocumentSetMemberRepo {
	return &documentSetMemberRepo{db: db, log: baseLog.With("repo", "DocumentSetMemberRepo")}
}

func (r *documentSetMemberRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *documentSetMemberRepo) Create(dbc dbctx.Context, member *types.DocumentSetMember) (*types.DocumentSetMember, error) {
	if member == nil {
		return nil, fmt.Errorf("missing member")
	}
	if member.DocumentSetID == uuid.Nil || member.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("missing set or document id")
	}
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	if member.SyncStatus == "" {
		member.SyncStatus = types.SyncStatusPending
	}
	res := r.conn(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_set_id"}, {Name: "document_id"}},
			DoNothing: true,
		}).
		Create(member)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrMemberExists
	}
	return member, nil
}

func (r *documentSetMemberRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentSetMember, error) {
	var m types.DocumentSetMember
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *documentSetMemberRepo) GetBySetAndDocument(dbc dbctx.Context, setID, documentID uuid.UUID) (*types.DocumentSetMember, error) {
	var m types.DocumentSetMember
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("document_set_id = ? AND document_id = ?", setID, documentID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *documentSetMemberRepo) ListBySet(dbc dbctx.Context, setID uuid.UUID) ([]*types.DocumentSetMember, error) {
	var results []*types.DocumentSetMember
	if setID == uuid.Nil {
		return results, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("document_set_id = ?", setID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkProcessing is the audit marker that ingestion began. It runs before any
// I/O in the worker.
func (r *documentSetMemberRepo) MarkProcessing(dbc dbctx.Context, id uuid.UUID) error {
	return r.updateFields(dbc, id, map[string]interface{}{
		"sync_status": types.SyncStatusProcessing,
		"progress":    0,
	})
}

func (r *documentSetMemberRepo) SetProgress(dbc dbctx.Context, id uuid.UUID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return r.updateFields(dbc, id, map[string]interface{}{
		"progress": progress,
	})
}

// MarkSynced records a successful ingestion run. A fresh success clears any
// error message from previous attempts.
func (r *documentSetMemberRepo) MarkSynced(dbc dbctx.Context, id uuid.UUID, chunksCreated int) error {
	now := time.Now().UTC()
	return r.updateFields(dbc, id, map[string]interface{}{
		"sync_status":    types.SyncStatusSynced,
		"synced_at":      now,
		"chunks_created": chunksCreated,
		"error_message":  "",
		"progress":       100,
	})
}

func (r *documentSetMemberRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) error {
	if len(message) > errorMessageLimit {
		message = message[:errorMessageLimit]
	}
	return r.updateFields(dbc, id, map[string]interface{}{
		"sync_status":   types.SyncStatusFailed,
		"error_message": message,
	})
}

func (r *documentSetMemberRepo) updateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing member id")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.DocumentSetMember{}).
		Where("id = ?", id).
		Updates(updates).Error
}
