package chunkembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/platform/openai"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

// Handler re-embeds a single chunk. It backs the backfill path for chunks
// whose embedding is missing or was produced under an older model.
type Handler struct {
	log      *logger.Logger
	embedder openai.Client
	chunks   documents.DocumentChunkRepo
}

func NewHandler(baseLog *logger.Logger, embedder openai.Client, chunks documents.DocumentChunkRepo) *Handler {
	return &Handler{
		log:      baseLog.With("worker", "ChunkEmbedding"),
		embedder: embedder,
		chunks:   chunks,
	}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EmbedChunkPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode embed_chunk payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.Process(ctx, payload)
}

func (h *Handler) Process(ctx context.Context, payload queue.EmbedChunkPayload) error {
	dbc := dbctx.Context{Ctx: ctx}

	content := payload.Content
	if content == "" {
		// Payloads may omit the body to keep the queue light; read it back.
		rows, err := h.chunks.GetByIDs(dbc, []uuid.UUID{payload.ChunkID})
		if err != nil {
			return fmt.Errorf("load chunk %s: %w", payload.ChunkID, err)
		}
		if len(rows) == 0 {
			// Chunk deleted between enqueue and run, nothing to do.
			h.log.Warn("Chunk gone before embedding", "chunk_id", payload.ChunkID)
			return nil
		}
		content = rows[0].Content
	}

	emb, promptTokens, err := h.embedder.EmbedOne(ctx, content)
	if err != nil {
		if errors.Is(err, vector.ErrDimension) {
			return fmt.Errorf("embed chunk %s: %v: %w", payload.ChunkID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("embed chunk %s: %w", payload.ChunkID, err)
	}

	if err := h.chunks.UpdateEmbedding(dbc, payload.ChunkID, emb, promptTokens); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("store embedding for chunk %s: %w", payload.ChunkID, err)
	}
	h.log.Debug("Chunk embedded", "chunk_id", payload.ChunkID, "prompt_tokens", promptTokens)
	return nil
}
