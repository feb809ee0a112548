package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

var (
	ErrSetNotFound    = errors.New("document set not found")
	ErrMemberNotFound = errors.New("document set member not found")
	ErrNotFailed      = errors.New("member is not in a failed state")
)

// AddDocumentInput describes one document joining a set. StoragePath is the
// object key of the already-uploaded file.
type AddDocumentInput struct {
	DocumentID  uuid.UUID
	Filename    string
	StoragePath string
	// Mode selects the enqueue identity. DedupeByDocument suppresses a
	// second run while one is already queued for this document.
	Mode queue.EnqueueMode
}

// DocumentSetService owns document set lifecycle: creation, membership and
// the ingestion kicks that follow membership changes.
type DocumentSetService interface {
	CreateSet(ctx context.Context, set *types.DocumentSet) (*types.DocumentSet, error)
	GetSet(ctx context.Context, id uuid.UUID) (*types.DocumentSet, error)
	ListSetsByProject(ctx context.Context, projectID uuid.UUID) ([]*types.DocumentSet, error)
	AddDocument(ctx context.Context, setID uuid.UUID, in AddDocumentInput) (*types.DocumentSetMember, string, error)
	ListMembers(ctx context.Context, setID uuid.UUID) ([]*types.DocumentSetMember, error)
	RetryMember(ctx context.Context, memberID uuid.UUID, filename, storagePath string, mode queue.EnqueueMode) (string, error)
}

type documentSetService struct {
	log     *logger.Logger
	sets    documents.DocumentSetRepo
	members documents.DocumentSetMemberRepo
	queue   queue.Client
}

func NewDocumentSetService(
	baseLog *logger.Logger,
	sets documents.DocumentSetRepo,
	members documents.DocumentSetMemberRepo,
	q queue.Client,
) DocumentSetService {
	return &documentSetService{
		log:     baseLog.With("service", "DocumentSetService"),
		sets:    sets,
		members: members,
		queue:   q,
	}
}

func (s *documentSetService) CreateSet(ctx context.Context, set *types.DocumentSet) (*types.DocumentSet, error) {
	return s.sets.Create(dbctx.Context{Ctx: ctx}, set)
}

func (s *documentSetService) GetSet(ctx context.Context, id uuid.UUID) (*types.DocumentSet, error) {
	rows, err := s.sets.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrSetNotFound
	}
	return rows[0], nil
}

func (s *documentSetService) ListSetsByProject(ctx context.Context, projectID uuid.UUID) ([]*types.DocumentSet, error) {
	return s.sets.ListByProject(dbctx.Context{Ctx: ctx}, projectID)
}

// AddDocument registers the membership row and enqueues ingestion. The
// member lands in pending state; the worker owns every transition after
// that. Returns the member and the queue job id.
func (s *documentSetService) AddDocument(ctx context.Context, setID uuid.UUID, in AddDocumentInput) (*types.DocumentSetMember, string, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := s.GetSet(ctx, setID); err != nil {
		return nil, "", err
	}

	member, err := s.members.Create(dbc, &types.DocumentSetMember{
		DocumentSetID: setID,
		DocumentID:    in.DocumentID,
		SyncStatus:    types.SyncStatusPending,
	})
	if err != nil {
		// Duplicate membership propagates untouched so the handler can
		// answer with a conflict instead of a server error.
		return nil, "", err
	}

	jobID, err := s.queue.EnqueueDocumentProcessing(ctx, in.DocumentID, setID, in.Filename, in.StoragePath, in.Mode)
	if err != nil {
		if markErr := s.members.MarkFailed(dbc, member.ID, fmt.Sprintf("enqueue failed: %v", err)); markErr != nil {
			s.log.Error("Failed to record enqueue failure", "member_id", member.ID, "error", markErr)
		}
		return nil, "", fmt.Errorf("enqueue document processing: %w", err)
	}

	s.log.Info("Document queued for ingestion",
		"document_set_id", setID,
		"document_id", in.DocumentID,
		"job_id", jobID,
	)
	return member, jobID, nil
}

func (s *documentSetService) ListMembers(ctx context.Context, setID uuid.UUID) ([]*types.DocumentSetMember, error) {
	return s.members.ListBySet(dbctx.Context{Ctx: ctx}, setID)
}

// RetryMember re-runs ingestion for a failed member. The caller picks the
// enqueue mode: force-new-run bypasses an incomplete deduped job that may
// still be sitting in the queue.
func (s *documentSetService) RetryMember(ctx context.Context, memberID uuid.UUID, filename, storagePath string, mode queue.EnqueueMode) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}

	member, err := s.members.GetByID(dbc, memberID)
	if err != nil {
		return "", ErrMemberNotFound
	}
	if member.SyncStatus != types.SyncStatusFailed {
		return "", ErrNotFailed
	}

	jobID, err := s.queue.EnqueueDocumentProcessing(ctx, member.DocumentID, member.DocumentSetID, filename, storagePath, mode)
	if err != nil {
		return "", fmt.Errorf("enqueue retry: %w", err)
	}
	s.log.Info("Failed member re-queued", "member_id", memberID, "job_id", jobID)
	return jobID, nil
}
