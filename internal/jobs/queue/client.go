package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

// EnqueueMode selects the document-processing job id scheme. Whether
// re-ingestion should dedupe is a per-call product decision, so both modes
// are exposed and the caller chooses explicitly.
type EnqueueMode int

const (
	// ForceNewRun creates a fresh job on every enqueue (timestamp-suffixed id).
	ForceNewRun EnqueueMode = iota
	// DedupeByDocument makes enqueue a no-op while a job for the same
	// document is still incomplete.
	DedupeByDocument
)

// QueueStats is the per-queue job-count breakdown for observability.
type QueueStats struct {
	Queue     string `json:"queue"`
	Paused    bool   `json:"paused"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Delayed   int    `json:"delayed"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

type Client interface {
	EnqueueDocumentProcessing(ctx context.Context, documentID, documentSetID uuid.UUID, filename, storagePath string, mode EnqueueMode) (string, error)
	EnqueueChunkEmbedding(ctx context.Context, chunkID uuid.UUID, content string) (string, error)
	EnqueueReportSection(ctx context.Context, reportID uuid.UUID, sectionIndex int, query string, documentSetIDs []uuid.UUID) (string, error)
	GetQueueStats(ctx context.Context) ([]QueueStats, error)
	PauseQueue(name string) error
	ResumeQueue(name string) error
	DrainQueue(name string) (int, error)
	Close() error
}

// taskEnqueuer and queueInspector are the slices of the asynq client and
// inspector this package calls. Tests substitute in-memory fakes.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	PauseQueue(queue string) error
	UnpauseQueue(queue string) error
	DeleteAllPendingTasks(queue string) (int, error)
	DeleteAllScheduledTasks(queue string) (int, error)
	DeleteAllRetryTasks(queue string) (int, error)
	Close() error
}

type client struct {
	log       *logger.Logger
	enqueuer  taskEnqueuer
	inspector queueInspector
}

// NewClient connects to the queue broker. A missing REDIS_URL is fatal: the
// process must not start without its queue.
func NewClient(log *logger.Logger) (Client, error) {
	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		return nil, fmt.Errorf("missing REDIS_URL")
	}
	// rediss:// URLs (managed brokers) carry TLS via the scheme.
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &client{
		log:       log.With("service", "QueueClient"),
		enqueuer:  asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}, nil
}

func (c *client) EnqueueDocumentProcessing(ctx context.Context, documentID, documentSetID uuid.UUID, filename, storagePath string, mode EnqueueMode) (string, error) {
	if documentID == uuid.Nil || documentSetID == uuid.Nil {
		return "", fmt.Errorf("missing document or set id")
	}

	// Self-healing against a stuck pause state: ingestion is user-facing,
	// so an operator pause must not strand fresh uploads.
	if info, err := c.inspector.GetQueueInfo(QueueDocumentProcessing); err == nil && info.Paused {
		if err := c.inspector.UnpauseQueue(QueueDocumentProcessing); err != nil {
			c.log.Warn("Could not resume paused queue before enqueue", "queue", QueueDocumentProcessing, "error", err)
		} else {
			c.log.Info("Resumed paused queue before enqueue", "queue", QueueDocumentProcessing)
		}
	}

	jobID := DocumentJobID(documentID, time.Now())
	if mode == DedupeByDocument {
		jobID = DocumentJobIDDeduped(documentID)
	}

	payload, err := json.Marshal(ProcessDocumentPayload{
		Type:          TypeProcessDocument,
		DocumentID:    documentID,
		DocumentSetID: documentSetID,
		Filename:      filename,
		StoragePath:   storagePath,
	})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TypeProcessDocument, payload)
	opts := []asynq.Option{
		asynq.Queue(QueueDocumentProcessing),
		asynq.TaskID(jobID),
		asynq.MaxRetry(MaxRetryDocumentProcessing),
		asynq.Retention(24*time.Hour),
	}
	_, err = c.enqueuer.EnqueueContext(ctx, task, opts...)
	if mode == DedupeByDocument && errors.Is(err, asynq.ErrTaskIDConflict) {
		// The conflicting task may be a retained completed or archived run,
		// which will never execute again. Reclaim its id so a retry of the
		// same document is not silently dropped.
		reclaimed, reclaimErr := c.reclaimFinishedTask(QueueDocumentProcessing, jobID)
		if reclaimErr != nil {
			return "", fmt.Errorf("resolve task id conflict for %s: %w", jobID, reclaimErr)
		}
		if !reclaimed {
			c.log.Debug("Document processing already queued", "job_id", jobID)
			return jobID, nil
		}
		_, err = c.enqueuer.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeProcessDocument, err)
	}
	c.log.Info("Enqueued document processing", "job_id", jobID, "document_id", documentID, "document_set_id", documentSetID)
	return jobID, nil
}

// reclaimFinishedTask deletes the task with the given id if it is in a
// finished state (completed or archived). It reports true when the id is
// free to reuse and false when a live task still covers the enqueue.
func (c *client) reclaimFinishedTask(queue, jobID string) (bool, error) {
	info, err := c.inspector.GetTaskInfo(queue, jobID)
	if err != nil {
		// The conflicting task can expire between the enqueue attempt and
		// this lookup, in which case the id is already free.
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return true, nil
		}
		return false, err
	}
	switch info.State {
	case asynq.TaskStateCompleted, asynq.TaskStateArchived:
		if err := c.inspector.DeleteTask(queue, jobID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return false, err
		}
		c.log.Info("Reclaimed finished task id", "queue", queue, "job_id", jobID, "state", info.State.String())
		return true, nil
	default:
		return false, nil
	}
}

func (c *client) EnqueueChunkEmbedding(ctx context.Context, chunkID uuid.UUID, content string) (string, error) {
	if chunkID == uuid.Nil {
		return "", fmt.Errorf("missing chunk id")
	}
	jobID := ChunkJobID(chunkID)

	payload, err := json.Marshal(EmbedChunkPayload{
		Type:    TypeEmbedChunk,
		ChunkID: chunkID,
		Content: content,
	})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TypeEmbedChunk, payload)
	_, err = c.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(QueueChunkEmbedding),
		asynq.TaskID(jobID),
		asynq.MaxRetry(MaxRetryChunkEmbedding),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		// Idempotent per chunk: a live job with this id already covers us.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return jobID, nil
		}
		return "", fmt.Errorf("enqueue %s: %w", TypeEmbedChunk, err)
	}
	return jobID, nil
}

func (c *client) EnqueueReportSection(ctx context.Context, reportID uuid.UUID, sectionIndex int, query string, documentSetIDs []uuid.UUID) (string, error) {
	if reportID == uuid.Nil {
		return "", fmt.Errorf("missing report id")
	}
	jobID := ReportSectionJobID(reportID, sectionIndex)

	payload, err := json.Marshal(GenerateSectionPayload{
		Type:           TypeGenerateSection,
		ReportID:       reportID,
		SectionIndex:   sectionIndex,
		Query:          query,
		DocumentSetIDs: documentSetIDs,
	})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TypeGenerateSection, payload)
	_, err = c.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(QueueReportGeneration),
		asynq.TaskID(jobID),
		asynq.MaxRetry(MaxRetryReportSection),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return jobID, nil
		}
		return "", fmt.Errorf("enqueue %s: %w", TypeGenerateSection, err)
	}
	return jobID, nil
}

func (c *client) GetQueueStats(ctx context.Context) ([]QueueStats, error) {
	known, err := c.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	exists := make(map[string]bool, len(known))
	for _, q := range known {
		exists[q] = true
	}

	names := []string{QueueDocumentProcessing, QueueChunkEmbedding, QueueReportGeneration}
	out := make([]QueueStats, 0, len(names))
	for _, name := range names {
		// A queue that has never seen a task does not exist yet.
		if !exists[name] {
			out = append(out, QueueStats{Queue: name})
			continue
		}
		info, err := c.inspector.GetQueueInfo(name)
		if err != nil {
			return nil, fmt.Errorf("queue info %s: %w", name, err)
		}
		out = append(out, QueueStats{
			Queue:     name,
			Paused:    info.Paused,
			Waiting:   info.Pending,
			Active:    info.Active,
			Delayed:   info.Scheduled + info.Retry,
			Completed: info.Completed,
			Failed:    info.Archived,
		})
	}
	return out, nil
}

func (c *client) PauseQueue(name string) error {
	return c.inspector.PauseQueue(name)
}

func (c *client) ResumeQueue(name string) error {
	return c.inspector.UnpauseQueue(name)
}

// DrainQueue removes everything not currently executing.
func (c *client) DrainQueue(name string) (int, error) {
	total := 0
	n, err := c.inspector.DeleteAllPendingTasks(name)
	if err != nil {
		return total, err
	}
	total += n
	n, err = c.inspector.DeleteAllScheduledTasks(name)
	if err != nil {
		return total, err
	}
	total += n
	n, err = c.inspector.DeleteAllRetryTasks(name)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

// Close releases the broker connections. The app context owns exactly one
// Client, so closing it at shutdown closes everything.
func (c *client) Close() error {
	var first error
	if err := c.enqueuer.Close(); err != nil {
		first = err
	}
	if err := c.inspector.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
