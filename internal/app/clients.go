package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/planhaus/planhaus-backend/internal/ingestion/parser"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/gcp"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/platform/openai"
	"github.com/planhaus/planhaus-backend/internal/realtime"
)

type Clients struct {
	OpenAI      openai.Client
	Bucket      gcp.BucketService
	Parser      parser.Parser
	Queue       queue.Client
	Redis       *redis.Client
	ProgressBus realtime.ProgressBus
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	oa, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket service: %w", err)
	}

	// Document AI is optional; without it only plain-text formats parse.
	docAI, err := gcp.NewDocumentAI(context.Background(), log)
	if err != nil {
		return Clients{}, fmt.Errorf("init document ai: %w", err)
	}
	var extractor parser.TextExtractor
	if docAI != nil {
		extractor = docAI
	}

	q, err := queue.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init queue client: %w", err)
	}

	redisOpt, err := redis.ParseURL(strings.TrimSpace(os.Getenv("REDIS_URL")))
	if err != nil {
		return Clients{}, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpt)

	return Clients{
		OpenAI:      oa,
		Bucket:      bucket,
		Parser:      parser.New(extractor),
		Queue:       q,
		Redis:       rdb,
		ProgressBus: realtime.NewProgressBus(rdb, log),
	}, nil
}
