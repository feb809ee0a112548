package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

// Defaults for the search knobs. Callers pass zero values to take them.
const (
	DefaultTopK          = 30
	DefaultRerankTopN    = 15
	DefaultMinScore      = 0.2
	maxCandidateMultiple = 2
)

// Options tunes one search call.
type Options struct {
	// TopK is the candidate pool pulled from the vector index.
	TopK int
	// RerankTopN is how many results survive the final cut.
	RerankTopN int
	// MinScore drops candidates below this cosine similarity. Negative
	// disables the cutoff; zero takes the default.
	MinScore float64
	// IncludeParentContext attaches each hit's ancestor chunks so callers
	// see the clause inside its section.
	IncludeParentContext bool
}

func (o *Options) setDefaults() {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RerankTopN <= 0 {
		o.RerankTopN = DefaultRerankTopN
	}
	if o.MinScore == 0 {
		o.MinScore = DefaultMinScore
	}
	if o.MinScore < 0 {
		o.MinScore = 0
	}
}

// Hit is one retrieved chunk with its similarity score and, when requested,
// the chain of ancestor chunks from the document root down to its parent.
type Hit struct {
	Chunk         *types.DocumentChunk   `json:"chunk"`
	Score         float64                `json:"score"`
	ParentContext []*types.DocumentChunk `json:"parentContext,omitempty"`
}

// QueryEmbedder is the slice of the model client retrieval needs.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, input string) (vector.Vector, int, error)
}

// Service answers natural-language queries against one or more document
// sets with a cosine similarity search over synced chunks.
type Service interface {
	Search(ctx context.Context, query string, documentSetIDs []uuid.UUID, opts Options) ([]Hit, error)
}

type service struct {
	log      *logger.Logger
	embedder QueryEmbedder
	chunks   documents.DocumentChunkRepo
	members  documents.DocumentSetMemberRepo
}

func NewService(
	baseLog *logger.Logger,
	embedder QueryEmbedder,
	chunks documents.DocumentChunkRepo,
	members documents.DocumentSetMemberRepo,
) Service {
	return &service{
		log:      baseLog.With("service", "RetrievalService"),
		embedder: embedder,
		chunks:   chunks,
		members:  members,
	}
}

func (s *service) Search(ctx context.Context, query string, documentSetIDs []uuid.UUID, opts Options) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	opts.setDefaults()
	dbc := dbctx.Context{Ctx: ctx}

	docIDs, err := s.syncedDocumentIDs(dbc, documentSetIDs)
	if err != nil {
		return nil, err
	}
	if len(docIDs) == 0 {
		return []Hit{}, nil
	}

	qvec, _, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch so the score cutoff still leaves a full candidate pool.
	nearest, err := s.chunks.NearestByDocumentIDs(dbc, docIDs, qvec, opts.TopK*maxCandidateMultiple)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, opts.TopK)
	for _, n := range nearest {
		if n.Score < opts.MinScore {
			continue
		}
		hits = append(hits, Hit{Chunk: n.Chunk, Score: n.Score})
		if len(hits) == opts.TopK {
			break
		}
	}

	// Score descending; equal scores order by chunk id so the same query
	// always returns the same page.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID.String() < hits[j].Chunk.ID.String()
	})

	if len(hits) > opts.RerankTopN {
		hits = hits[:opts.RerankTopN]
	}

	if opts.IncludeParentContext {
		if err := s.attachParents(dbc, hits); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

// syncedDocumentIDs resolves set membership to the documents whose chunks
// are searchable. Only fully synced members participate.
func (s *service) syncedDocumentIDs(dbc dbctx.Context, documentSetIDs []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, setID := range documentSetIDs {
		members, err := s.members.ListBySet(dbc, setID)
		if err != nil {
			return nil, fmt.Errorf("list members of set %s: %w", setID, err)
		}
		for _, m := range members {
			if m.SyncStatus != types.SyncStatusSynced {
				continue
			}
			if _, ok := seen[m.DocumentID]; ok {
				continue
			}
			seen[m.DocumentID] = struct{}{}
			out = append(out, m.DocumentID)
		}
	}
	return out, nil
}

// attachParents loads each hit's ancestor chain in one batch and attaches
// it root-first.
func (s *service) attachParents(dbc dbctx.Context, hits []Hit) error {
	byDoc := make(map[uuid.UUID]struct{})
	for _, h := range hits {
		if h.Chunk.ParentChunkID != nil {
			byDoc[h.Chunk.DocumentID] = struct{}{}
		}
	}
	if len(byDoc) == 0 {
		return nil
	}
	docIDs := make([]uuid.UUID, 0, len(byDoc))
	for id := range byDoc {
		docIDs = append(docIDs, id)
	}
	all, err := s.chunks.GetByDocumentIDs(dbc, docIDs)
	if err != nil {
		return fmt.Errorf("load parent context: %w", err)
	}
	byID := make(map[uuid.UUID]*types.DocumentChunk, len(all))
	for _, ch := range all {
		byID[ch.ID] = ch
	}

	for i := range hits {
		var chain []*types.DocumentChunk
		cur := hits[i].Chunk
		for cur.ParentChunkID != nil {
			parent, ok := byID[*cur.ParentChunkID]
			if !ok {
				break
			}
			chain = append([]*types.DocumentChunk{parent}, chain...)
			cur = parent
		}
		hits[i].ParentContext = chain
	}
	return nil
}
