package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/planhaus/planhaus-backend/internal/app"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
)

// reembed enqueues embedding jobs for chunks whose embedding column is
// empty, typically after a failed partial ingestion or an embed model
// change. The chunk job id makes repeated runs idempotent.
func main() {
	var batch int
	var dryRun bool
	flag.IntVar(&batch, "batch", 500, "max chunks to enqueue in one run")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned jobs without enqueueing")
	flag.Parse()

	_ = godotenv.Load()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()
	log := application.Log

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	chunks, err := application.Repos.DocumentChunk.ListMissingEmbeddings(dbc, batch)
	if err != nil {
		log.Error("List chunks without embeddings failed", "error", err)
		os.Exit(1)
	}
	if len(chunks) == 0 {
		log.Info("No chunks need embedding")
		return
	}

	enqueued := 0
	for _, ch := range chunks {
		if dryRun {
			fmt.Printf("would enqueue chunk %s (doc %s, path %s)\n", ch.ID, ch.DocumentID, ch.HierarchyPath)
			continue
		}
		jobID, err := application.Clients.Queue.EnqueueChunkEmbedding(ctx, ch.ID, ch.Content)
		if err != nil {
			log.Error("Enqueue failed", "chunk_id", ch.ID, "error", err)
			os.Exit(1)
		}
		log.Debug("Enqueued", "chunk_id", ch.ID, "job_id", jobID)
		enqueued++
	}
	log.Info("Re-embed run complete", "found", len(chunks), "enqueued", enqueued)
}
