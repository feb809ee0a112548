package docprocess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/ingestion/chunker"
	"github.com/planhaus/planhaus-backend/internal/ingestion/parser"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/realtime"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

// Progress milestones written to the member row as the pipeline advances.
const (
	progressFetched  = 10
	progressParsed   = 30
	progressChunked  = 50
	progressEmbedded = 80
	progressDone     = 100
)

// embedBatchSize bounds the number of chunk bodies in one embeddings call.
const embedBatchSize = 64

var tracer = otel.Tracer("jobs/docprocess")

// Fetcher is the slice of blob storage this handler needs.
type Fetcher interface {
	FetchBytes(ctx context.Context, key string) ([]byte, error)
}

// Embedder is the slice of the model client this handler needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([]vector.Vector, int, error)
}

// Handler runs the full ingestion pipeline for one document inside one
// document set: fetch, parse, chunk, embed, persist, mark synced.
type Handler struct {
	log      *logger.Logger
	fetcher  Fetcher
	parser   parser.Parser
	embedder Embedder
	chunks   documents.DocumentChunkRepo
	members  documents.DocumentSetMemberRepo
	bus      realtime.ProgressBus
}

func NewHandler(
	baseLog *logger.Logger,
	fetcher Fetcher,
	p parser.Parser,
	embedder Embedder,
	chunks documents.DocumentChunkRepo,
	members documents.DocumentSetMemberRepo,
	bus realtime.ProgressBus,
) *Handler {
	return &Handler{
		log:      baseLog.With("worker", "DocumentProcessing"),
		fetcher:  fetcher,
		parser:   p,
		embedder: embedder,
		chunks:   chunks,
		members:  members,
		bus:      bus,
	}
}

// ProcessTask is the asynq entrypoint for process_document tasks.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ProcessDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode process_document payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.Process(ctx, payload)
}

// Process runs the pipeline. Any failure after the processing marker is
// recorded on the member row before the error propagates to the queue for
// retry accounting. Terminal failures are wrapped so the queue does not
// retry them.
func (h *Handler) Process(ctx context.Context, payload queue.ProcessDocumentPayload) error {
	log := h.log.With(
		"document_id", payload.DocumentID,
		"document_set_id", payload.DocumentSetID,
		"filename", payload.Filename,
	)

	ctx, span := tracer.Start(ctx, "ingest.document", trace.WithAttributes(
		attribute.String("document.id", payload.DocumentID.String()),
		attribute.String("document_set.id", payload.DocumentSetID.String()),
		attribute.String("document.filename", payload.Filename),
	))
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}

	member, err := h.members.GetBySetAndDocument(dbc, payload.DocumentSetID, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("load set member: %w", err)
	}

	// The processing marker lands before any I/O so a crashed run is
	// visible as stuck-processing rather than stuck-pending.
	if err := h.members.MarkProcessing(dbc, member.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	h.publish(ctx, payload, member.ID, types.SyncStatusProcessing, 0, 0, "")

	chunksCreated, err := h.run(ctx, dbc, payload, member.ID)
	if err != nil {
		// Record the failure, then let the original error drive retry
		// behavior. A failed status write must not mask the real cause.
		if markErr := h.members.MarkFailed(dbc, member.ID, err.Error()); markErr != nil {
			log.Error("Failed to record ingestion failure", "error", markErr)
		}
		h.publish(ctx, payload, member.ID, types.SyncStatusFailed, 0, 0, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isTerminal(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := h.members.MarkSynced(dbc, member.ID, chunksCreated); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	span.SetAttributes(attribute.Int("document.chunks_created", chunksCreated))
	h.publish(ctx, payload, member.ID, types.SyncStatusSynced, progressDone, chunksCreated, "")
	log.Info("Document ingested", "chunks_created", chunksCreated)
	return nil
}

func (h *Handler) run(ctx context.Context, dbc dbctx.Context, payload queue.ProcessDocumentPayload, memberID uuid.UUID) (int, error) {
	raw, err := stage(ctx, "ingest.fetch", func(ctx context.Context) ([]byte, error) {
		return h.fetcher.FetchBytes(ctx, payload.StoragePath)
	})
	if err != nil {
		return 0, fmt.Errorf("fetch %q: %w", payload.StoragePath, err)
	}
	h.step(ctx, dbc, payload, memberID, progressFetched)

	parsed, err := stage(ctx, "ingest.parse", func(ctx context.Context) (*parser.Parsed, error) {
		return h.parser.Parse(ctx, payload.Filename, raw)
	})
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", payload.Filename, err)
	}
	h.step(ctx, dbc, payload, memberID, progressParsed)

	chunks, err := stage(ctx, "ingest.chunk", func(ctx context.Context) ([]*types.DocumentChunk, error) {
		return chunker.Chunk(parsed, payload.DocumentID, chunker.Config{})
	})
	if err != nil {
		return 0, fmt.Errorf("chunk %q: %w", payload.Filename, err)
	}
	h.step(ctx, dbc, payload, memberID, progressChunked)

	if _, err := stage(ctx, "ingest.embed", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.embedAll(ctx, chunks)
	}); err != nil {
		return 0, err
	}
	h.step(ctx, dbc, payload, memberID, progressEmbedded)

	// Re-ingestion replaces the previous chunk set wholesale.
	if _, err := stage(ctx, "ingest.persist", func(ctx context.Context) (struct{}, error) {
		if err := h.chunks.DeleteByDocumentID(dbctx.Context{Ctx: ctx}, payload.DocumentID); err != nil {
			return struct{}{}, fmt.Errorf("clear previous chunks: %w", err)
		}
		if _, err := h.chunks.Create(dbctx.Context{Ctx: ctx}, chunks); err != nil {
			return struct{}{}, fmt.Errorf("persist chunks: %w", err)
		}
		return struct{}{}, nil
	}); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// stage wraps one pipeline phase in a span, recording its error.
func stage[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// embedAll fills chunk embeddings in place, batching requests.
func (h *Handler) embedAll(ctx context.Context, chunks []*types.DocumentChunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		inputs := make([]string, len(batch))
		for i, ch := range batch {
			inputs[i] = ch.Content
		}
		vecs, _, err := h.embedder.Embed(ctx, inputs)
		if err != nil {
			return fmt.Errorf("embed chunks %d..%d: %w", start, end-1, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed chunks %d..%d: got %d vectors for %d inputs", start, end-1, len(vecs), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}
	}
	return nil
}

func (h *Handler) step(ctx context.Context, dbc dbctx.Context, payload queue.ProcessDocumentPayload, memberID uuid.UUID, progress int) {
	if err := h.members.SetProgress(dbc, memberID, progress); err != nil {
		h.log.Warn("Failed to persist progress", "member_id", memberID, "progress", progress, "error", err)
	}
	h.publish(ctx, payload, memberID, types.SyncStatusProcessing, progress, 0, "")
}

func (h *Handler) publish(ctx context.Context, payload queue.ProcessDocumentPayload, memberID uuid.UUID, status string, progress, chunksCreated int, errMsg string) {
	if h.bus == nil {
		return
	}
	ev := realtime.ProgressEvent{
		DocumentSetID: payload.DocumentSetID,
		DocumentID:    payload.DocumentID,
		MemberID:      memberID,
		Status:        status,
		Progress:      progress,
		ChunksCreated: chunksCreated,
		Error:         errMsg,
	}
	if err := h.bus.Publish(ctx, ev); err != nil {
		h.log.Warn("Failed to publish progress event", "error", err)
	}
}

// isTerminal reports whether retrying can never succeed: the format is
// unsupported or the provider returned vectors of the wrong width.
func isTerminal(err error) bool {
	return errors.Is(err, parser.ErrUnsupportedFormat) || errors.Is(err, vector.ErrDimension)
}
