package documents

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

// InsertBatchSize bounds a single INSERT payload against the vector store.
// Batch boundaries carry no semantics; earlier batches commit before later
// ones are attempted.
const InsertBatchSize = 50

type NearestChunk struct {
	Chunk *types.DocumentChunk
	Score float64
}

type DocumentChunkRepo interface {
	Create(dbc dbctx.Context, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error)
	GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentChunk, error)
	CountByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (int64, error)
	DeleteByDocumentID(dbc dbctx.Context, documentID uuid.UUID) error
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb vector.Vector, tokenCount int) error
	ListMissingEmbeddings(dbc dbctx.Context, limit int) ([]*types.DocumentChunk, error)
	NearestByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID, query vector.Vector, limit int) ([]NearestChunk, error)
}

type documentChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentChunkRepo(db *gorm.DB, baseLog *logger.Logger) DocumentChunkRepo {
	return &documentChunkRepo{db: db, log: baseLog.With("repo", "DocumentChunkRepo")}
}

func (r *documentChunkRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *documentChunkRepo) Create(dbc dbctx.Context, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	if len(chunks) == 0 {
		return []*types.DocumentChunk{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).CreateInBatches(chunks, InsertBatchSize).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *documentChunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error) {
	var results []*types.DocumentChunk
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

func (r *documentChunkRepo) GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentChunk, error) {
	var results []*types.DocumentChunk
	if len(documentIDs) == 0 {
		return results, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("document_id IN ?", documentIDs).
		Order("document_id, hierarchy_path ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentChunkRepo) CountByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Count(&n).Error
	return n, err
}

func (r *documentChunkRepo) DeleteByDocumentID(dbc dbctx.Context, documentID uuid.UUID) error {
	if documentID == uuid.Nil {
		return nil
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Delete(&types.DocumentChunk{}).Error
}

func (r *documentChunkRepo) UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb vector.Vector, tokenCount int) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing chunk id")
	}
	text, err := vector.Marshal(emb)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"embedding":  text,
		"updated_at": time.Now().UTC(),
	}
	if tokenCount > 0 {
		updates["token_count"] = tokenCount
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.DocumentChunk{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentChunkRepo) ListMissingEmbeddings(dbc dbctx.Context, limit int) ([]*types.DocumentChunk, error) {
	if limit <= 0 {
		limit = 100
	}
	var results []*types.DocumentChunk
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("embedding IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type nearestRow struct {
	types.DocumentChunk
	Score float64 `gorm:"column:score"`
}

// NearestByDocumentIDs runs a cosine similarity search scoped to the given
// documents. Results come back in descending score order; ties order by
// chunk id ascending so repeated queries are stable.
func (r *documentChunkRepo) NearestByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID, query vector.Vector, limit int) ([]NearestChunk, error) {
	if len(documentIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	qtext, err := vector.Marshal(query)
	if err != nil {
		return nil, err
	}

	var rows []nearestRow
	err = r.conn(dbc).WithContext(dbc.Ctx).Raw(`
		SELECT c.*, 1 - (c.embedding <=> ?::vector) AS score
		FROM document_chunks c
		WHERE c.document_id IN ? AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> ?::vector ASC, c.id ASC
		LIMIT ?`, qtext, documentIDs, qtext, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]NearestChunk, 0, len(rows))
	for i := range rows {
		ch := rows[i].DocumentChunk
		out = append(out, NearestChunk{Chunk: &ch, Score: rows[i].Score})
	}
	return out, nil
}
