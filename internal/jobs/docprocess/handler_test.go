package docprocess

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/ingestion/parser"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

const sampleContract = `Fitout Works Agreement

1. Fire Safety
1.1 All penetrations through fire rated walls must be sealed with approved fire collars.
1.2 Fire rating of doors in egress corridors shall be no less than 60 minutes.

2. Finishes
2.1 Floor finishes in wet areas shall be slip resistant.
`

type fakeFetcher struct {
	objects map[string][]byte
	err     error
}

func (f *fakeFetcher) FetchBytes(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([]vector.Vector, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	out := make([]vector.Vector, len(inputs))
	for i := range inputs {
		v := make(vector.Vector, vector.Dim)
		v[0] = float32(len(inputs[i]))
		out[i] = v
	}
	return out, len(inputs) * 4, nil
}

type fakeChunkRepo struct {
	created []*types.DocumentChunk
	deleted []uuid.UUID
}

func (f *fakeChunkRepo) Create(_ dbctx.Context, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	f.created = append(f.created, chunks...)
	return chunks, nil
}
func (f *fakeChunkRepo) GetByIDs(dbctx.Context, []uuid.UUID) ([]*types.DocumentChunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) GetByDocumentIDs(dbctx.Context, []uuid.UUID) ([]*types.DocumentChunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) CountByDocumentID(dbctx.Context, uuid.UUID) (int64, error) { return 0, nil }
func (f *fakeChunkRepo) DeleteByDocumentID(_ dbctx.Context, documentID uuid.UUID) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}
func (f *fakeChunkRepo) UpdateEmbedding(dbctx.Context, uuid.UUID, vector.Vector, int) error {
	return nil
}
func (f *fakeChunkRepo) ListMissingEmbeddings(dbctx.Context, int) ([]*types.DocumentChunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) NearestByDocumentIDs(dbctx.Context, []uuid.UUID, vector.Vector, int) ([]documents.NearestChunk, error) {
	return nil, nil
}

type fakeMemberRepo struct {
	member        *types.DocumentSetMember
	statuses      []string
	progresses    []int
	failedMessage string
	chunksCreated int
	failErr       error
}

func (f *fakeMemberRepo) Create(_ dbctx.Context, m *types.DocumentSetMember) (*types.DocumentSetMember, error) {
	return m, nil
}
func (f *fakeMemberRepo) GetByID(dbctx.Context, uuid.UUID) (*types.DocumentSetMember, error) {
	return f.member, nil
}
func (f *fakeMemberRepo) GetBySetAndDocument(dbctx.Context, uuid.UUID, uuid.UUID) (*types.DocumentSetMember, error) {
	if f.member == nil {
		return nil, errors.New("member not found")
	}
	return f.member, nil
}
func (f *fakeMemberRepo) ListBySet(dbctx.Context, uuid.UUID) ([]*types.DocumentSetMember, error) {
	return nil, nil
}
func (f *fakeMemberRepo) MarkProcessing(dbctx.Context, uuid.UUID) error {
	f.statuses = append(f.statuses, types.SyncStatusProcessing)
	return nil
}
func (f *fakeMemberRepo) SetProgress(_ dbctx.Context, _ uuid.UUID, progress int) error {
	f.progresses = append(f.progresses, progress)
	return nil
}
func (f *fakeMemberRepo) MarkSynced(_ dbctx.Context, _ uuid.UUID, chunksCreated int) error {
	f.statuses = append(f.statuses, types.SyncStatusSynced)
	f.chunksCreated = chunksCreated
	return nil
}
func (f *fakeMemberRepo) MarkFailed(_ dbctx.Context, _ uuid.UUID, message string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.statuses = append(f.statuses, types.SyncStatusFailed)
	f.failedMessage = message
	return nil
}

func newTestHandler(t *testing.T, fetcher *fakeFetcher, embedder *fakeEmbedder, chunks *fakeChunkRepo, members *fakeMemberRepo) *Handler {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return NewHandler(log, fetcher, parser.New(nil), embedder, chunks, members, nil)
}

func testPayload(member *types.DocumentSetMember, filename string) queue.ProcessDocumentPayload {
	return queue.ProcessDocumentPayload{
		Type:          queue.TypeProcessDocument,
		DocumentID:    member.DocumentID,
		DocumentSetID: member.DocumentSetID,
		Filename:      filename,
		StoragePath:   "uploads/" + filename,
	}
}

func testMember() *types.DocumentSetMember {
	return &types.DocumentSetMember{
		ID:            uuid.New(),
		DocumentSetID: uuid.New(),
		DocumentID:    uuid.New(),
		SyncStatus:    types.SyncStatusPending,
	}
}

func TestProcessHappyPath(t *testing.T) {
	member := testMember()
	payload := testPayload(member, "contract.txt")
	fetcher := &fakeFetcher{objects: map[string][]byte{payload.StoragePath: []byte(sampleContract)}}
	embedder := &fakeEmbedder{}
	chunks := &fakeChunkRepo{}
	members := &fakeMemberRepo{member: member}

	h := newTestHandler(t, fetcher, embedder, chunks, members)
	require.NoError(t, h.Process(context.Background(), payload))

	assert.Equal(t, []string{types.SyncStatusProcessing, types.SyncStatusSynced}, members.statuses)
	assert.Equal(t, []int{10, 30, 50, 80}, members.progresses)

	require.NotEmpty(t, chunks.created)
	assert.Equal(t, len(chunks.created), members.chunksCreated)
	assert.Equal(t, []uuid.UUID{member.DocumentID}, chunks.deleted, "re-ingestion clears previous chunks first")
	for _, ch := range chunks.created {
		assert.Len(t, ch.Embedding, vector.Dim, "every persisted chunk carries an embedding")
	}
	assert.Equal(t, 1, embedder.calls)
}

func TestProcessUnsupportedFormatIsTerminal(t *testing.T) {
	member := testMember()
	payload := testPayload(member, "plan.dwg")
	fetcher := &fakeFetcher{objects: map[string][]byte{payload.StoragePath: {0x1}}}
	members := &fakeMemberRepo{member: member}

	h := newTestHandler(t, fetcher, &fakeEmbedder{}, &fakeChunkRepo{}, members)
	err := h.Process(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "unsupported format must not be retried")
	assert.Equal(t, []string{types.SyncStatusProcessing, types.SyncStatusFailed}, members.statuses)
	assert.Contains(t, members.failedMessage, "unsupported document format")
}

func TestProcessEmbedFailureIsRetryable(t *testing.T) {
	member := testMember()
	payload := testPayload(member, "contract.txt")
	fetcher := &fakeFetcher{objects: map[string][]byte{payload.StoragePath: []byte(sampleContract)}}
	embedder := &fakeEmbedder{err: errors.New("rate limited")}
	members := &fakeMemberRepo{member: member}

	h := newTestHandler(t, fetcher, embedder, &fakeChunkRepo{}, members)
	err := h.Process(context.Background(), payload)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "provider errors stay retryable")
	assert.Contains(t, members.failedMessage, "rate limited")
}

func TestProcessFailureRecordingErrorDoesNotMaskCause(t *testing.T) {
	member := testMember()
	payload := testPayload(member, "contract.txt")
	fetcher := &fakeFetcher{err: errors.New("bucket unreachable")}
	members := &fakeMemberRepo{member: member, failErr: errors.New("db down")}

	h := newTestHandler(t, fetcher, &fakeEmbedder{}, &fakeChunkRepo{}, members)
	err := h.Process(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")
	assert.NotContains(t, err.Error(), "db down")
}

func TestTerminalErrorClassification(t *testing.T) {
	_, marshalErr := vector.Marshal(make(vector.Vector, 3))
	require.Error(t, marshalErr)
	assert.True(t, isTerminal(marshalErr), "dimension mismatch from the codec is terminal")

	providerErr := fmt.Errorf("openai: embedding 0: %w: got 512, want %d", vector.ErrDimension, vector.Dim)
	assert.True(t, isTerminal(providerErr), "wrapped provider dimension mismatch is terminal")

	assert.True(t, isTerminal(fmt.Errorf("parse: %w", parser.ErrUnsupportedFormat)))
	assert.False(t, isTerminal(errors.New("connection reset")))
	assert.False(t, isTerminal(nil))
}
