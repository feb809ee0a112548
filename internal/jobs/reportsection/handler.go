package reportsection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/planhaus/planhaus-backend/internal/data/repos/reports"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/retrieval"
)

const systemPrompt = `You are a construction documentation assistant. Write the requested report section using ONLY the provided source excerpts. Cite clause numbers where the sources carry them. If the sources do not cover the question, say so plainly.`

// Generator is the slice of the model client this handler needs.
type Generator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// Handler generates one report section: retrieve relevant chunks from the
// configured document sets, prompt the model with them, persist the result.
type Handler struct {
	log       *logger.Logger
	retriever retrieval.Service
	generator Generator
	sections  reports.ReportSectionRepo
}

func NewHandler(baseLog *logger.Logger, retriever retrieval.Service, generator Generator, sections reports.ReportSectionRepo) *Handler {
	return &Handler{
		log:       baseLog.With("worker", "ReportSection"),
		retriever: retriever,
		generator: generator,
		sections:  sections,
	}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.GenerateSectionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode generate_section payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.Process(ctx, payload)
}

func (h *Handler) Process(ctx context.Context, payload queue.GenerateSectionPayload) error {
	log := h.log.With("report_id", payload.ReportID, "section_index", payload.SectionIndex)
	dbc := dbctx.Context{Ctx: ctx}

	section, err := h.sections.GetByReportAndIndex(dbc, payload.ReportID, payload.SectionIndex)
	if err != nil {
		return fmt.Errorf("load report section: %w", err)
	}
	if err := h.sections.MarkGenerating(dbc, section.ID); err != nil {
		return fmt.Errorf("mark generating: %w", err)
	}

	content, sourceIDs, err := h.generate(ctx, payload)
	if err != nil {
		if markErr := h.sections.MarkFailed(dbc, section.ID, err.Error()); markErr != nil {
			log.Error("Failed to record section failure", "error", markErr)
		}
		return err
	}

	if err := h.sections.MarkDone(dbc, section.ID, content, sourceIDs); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	log.Info("Report section generated", "sources", len(sourceIDs))
	return nil
}

func (h *Handler) generate(ctx context.Context, payload queue.GenerateSectionPayload) (string, []uuid.UUID, error) {
	hits, err := h.retriever.Search(ctx, payload.Query, payload.DocumentSetIDs, retrieval.Options{
		IncludeParentContext: true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("retrieve sources: %w", err)
	}

	content, err := h.generator.GenerateText(ctx, systemPrompt, buildUserPrompt(payload.Query, hits))
	if err != nil {
		return "", nil, fmt.Errorf("generate section: %w", err)
	}

	sourceIDs := make([]uuid.UUID, 0, len(hits))
	for _, hit := range hits {
		sourceIDs = append(sourceIDs, hit.Chunk.ID)
	}
	return content, sourceIDs, nil
}

func buildUserPrompt(query string, hits []retrieval.Hit) string {
	var b strings.Builder
	b.WriteString("Section request: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	if len(hits) == 0 {
		b.WriteString("No matching source excerpts were found.\n")
		return b.String()
	}
	b.WriteString("Source excerpts:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n[%d]", i+1)
		for _, parent := range hit.ParentContext {
			if parent.SectionTitle != "" {
				fmt.Fprintf(&b, " %s >", parent.SectionTitle)
			}
		}
		if hit.Chunk.ClauseNumber != "" {
			fmt.Fprintf(&b, " clause %s", hit.Chunk.ClauseNumber)
		}
		b.WriteString("\n")
		b.WriteString(hit.Chunk.Content)
		b.WriteString("\n")
	}
	return b.String()
}
