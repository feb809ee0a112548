package documents

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

type DocumentSetRepo interface {
	Create(dbc dbctx.Context, set *types.DocumentSet) (*types.DocumentSet, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentSet, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.DocumentSet, error)
	GetDefaultForProject(dbc dbctx.Context, projectID uuid.UUID) (*types.DocumentSet, error)
}

type documentSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentSetRepo(db *gorm.DB, baseLog *logger.Logger) DocumentSetRepo {
	return &documentSetRepo{db: db, log: baseLog.With("repo", "DocumentSetRepo")}
}

func (r *documentSetRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *documentSetRepo) Create(dbc dbctx.Context, set *types.DocumentSet) (*types.DocumentSet, error) {
	if set == nil {
		return nil, fmt.Errorf("missing document set")
	}
	if set.ID == uuid.Nil {
		set.ID = uuid.New()
	}
	if !set.RepoType.Valid() {
		return nil, fmt.Errorf("invalid repo_type %q", set.RepoType)
	}
	if set.IsGlobal && set.OrganizationID == nil {
		return nil, fmt.Errorf("global document set requires organization_id")
	}
	if set.IsGlobal && set.ProjectID != nil {
		return nil, fmt.Errorf("global document set cannot be project scoped")
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(set).Error; err != nil {
		return nil, err
	}
	return set, nil
}

func (r *documentSetRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentSet, error) {
	var results []*types.DocumentSet
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentSetRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.DocumentSet, error) {
	var results []*types.DocumentSet
	if projectID == uuid.Nil {
		return results, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentSetRepo) GetDefaultForProject(dbc dbctx.Context, projectID uuid.UUID) (*types.DocumentSet, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project id")
	}
	var set types.DocumentSet
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("project_id = ? AND is_default", projectID).
		Limit(1).
		Find(&set).Error
	if err != nil {
		return nil, err
	}
	if set.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &set, nil
}
