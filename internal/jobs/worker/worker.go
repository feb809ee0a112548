package worker

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/planhaus/planhaus-backend/internal/jobs/chunkembed"
	"github.com/planhaus/planhaus-backend/internal/jobs/docprocess"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/jobs/reportsection"
	"github.com/planhaus/planhaus-backend/internal/platform/envutil"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

// Per-queue worker concurrency. Document processing is memory-heavy (whole
// documents in flight), embedding jobs are small HTTP calls.
const (
	ConcurrencyDocumentProcessing = 2
	ConcurrencyChunkEmbedding     = 5
	ConcurrencyReportGeneration   = 2
)

// Runner hosts one asynq server per queue so each queue keeps its own
// concurrency budget instead of competing inside a shared pool.
type Runner struct {
	log     *logger.Logger
	servers []queueServer
}

type queueServer struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func New(
	baseLog *logger.Logger,
	docHandler *docprocess.Handler,
	embedHandler *chunkembed.Handler,
	sectionHandler *reportsection.Handler,
) (*Runner, error) {
	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		return nil, fmt.Errorf("missing REDIS_URL")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	log := baseLog.With("service", "WorkerRunner")
	r := &Runner{log: log}

	r.servers = append(r.servers,
		newServer(opt, log, queue.QueueDocumentProcessing,
			envutil.Int("WORKER_DOC_CONCURRENCY", ConcurrencyDocumentProcessing),
			queue.TypeProcessDocument, docHandler),
		newServer(opt, log, queue.QueueChunkEmbedding,
			envutil.Int("WORKER_EMBED_CONCURRENCY", ConcurrencyChunkEmbedding),
			queue.TypeEmbedChunk, embedHandler),
		newServer(opt, log, queue.QueueReportGeneration,
			envutil.Int("WORKER_REPORT_CONCURRENCY", ConcurrencyReportGeneration),
			queue.TypeGenerateSection, sectionHandler),
	)
	return r, nil
}

func newServer(opt asynq.RedisConnOpt, log *logger.Logger, queueName string, concurrency int, taskType string, h asynq.Handler) queueServer {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         map[string]int{queueName: 1},
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("Task failed", "queue", queueName, "type", task.Type(), "error", err)
		}),
		Logger: asynqLogger{log.With("queue", queueName)},
	})
	mux := asynq.NewServeMux()
	mux.Handle(taskType, h)
	return queueServer{srv: srv, mux: mux}
}

// retryDelay backs off exponentially from one second, capped at five
// minutes, regardless of which queue the task came from.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Second * time.Duration(math.Pow(2, float64(n)))
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

// Run starts all servers and blocks until the context ends or any server
// fails. Shutdown waits for in-flight tasks before returning.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, qs := range r.servers {
		qs := qs
		g.Go(func() error {
			return qs.srv.Run(qs.mux)
		})
		g.Go(func() error {
			<-ctx.Done()
			qs.srv.Shutdown()
			return nil
		})
	}
	r.log.Info("Workers started",
		"document_processing", ConcurrencyDocumentProcessing,
		"chunk_embedding", ConcurrencyChunkEmbedding,
		"report_generation", ConcurrencyReportGeneration,
	)
	return g.Wait()
}

// asynqLogger adapts the structured logger to asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
