package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue names. Each queue has its own retry, retention, and priority
// profile because the three job types have materially different
// cost/flakiness/criticality profiles.
const (
	QueueDocumentProcessing = "document-processing"
	QueueChunkEmbedding     = "chunk-embedding"
	QueueReportGeneration   = "report-generation"
)

// Task type names, also the "type" field of every payload.
const (
	TypeProcessDocument = "process_document"
	TypeEmbedChunk      = "embed_chunk"
	TypeGenerateSection = "generate_section"
)

// Per-queue retry budgets. Embedding calls are the flakiest (rate limits),
// report sections the least critical.
const (
	MaxRetryDocumentProcessing = 3
	MaxRetryChunkEmbedding     = 5
	MaxRetryReportSection      = 2
)

type ProcessDocumentPayload struct {
	Type          string    `json:"type"`
	DocumentID    uuid.UUID `json:"documentId"`
	DocumentSetID uuid.UUID `json:"documentSetId"`
	Filename      string    `json:"filename"`
	StoragePath   string    `json:"storagePath"`
}

type EmbedChunkPayload struct {
	Type    string    `json:"type"`
	ChunkID uuid.UUID `json:"chunkId"`
	Content string    `json:"content"`
}

type GenerateSectionPayload struct {
	Type           string      `json:"type"`
	ReportID       uuid.UUID   `json:"reportId"`
	SectionIndex   int         `json:"sectionIndex"`
	Query          string      `json:"query"`
	DocumentSetIDs []uuid.UUID `json:"documentSetIds"`
}

// DocumentJobID is the force-new-run form: the timestamp suffix makes every
// enqueue a fresh job, so concurrent re-ingestion attempts are possible.
func DocumentJobID(documentID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("doc-%s-%d", documentID, at.UnixMilli())
}

// DocumentJobIDDeduped is the document-addressed form: while a job with this
// id is incomplete, re-enqueueing the same document is a no-op.
func DocumentJobIDDeduped(documentID uuid.UUID) string {
	return fmt.Sprintf("doc-%s", documentID)
}

// ChunkJobID is idempotent per chunk by construction.
func ChunkJobID(chunkID uuid.UUID) string {
	return fmt.Sprintf("chunk-%s", chunkID)
}

// ReportSectionJobID is idempotent per (report, section).
func ReportSectionJobID(reportID uuid.UUID, sectionIndex int) string {
	return fmt.Sprintf("report-%s-section-%d", reportID, sectionIndex)
}
