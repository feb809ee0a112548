package documents

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/data/repos/testutil"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

func testEmbedding(seed float32) vector.Vector {
	v := make(vector.Vector, vector.Dim)
	v[0] = seed
	v[1] = 1
	return v
}

func makeChunks(documentID uuid.UUID, n int) []*types.DocumentChunk {
	out := make([]*types.DocumentChunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &types.DocumentChunk{
			ID:             uuid.New(),
			DocumentID:     documentID,
			HierarchyLevel: types.LevelSection,
			HierarchyPath:  fmt.Sprintf("%04d", i+1),
			Content:        fmt.Sprintf("section %d body", i+1),
			Embedding:      testEmbedding(float32(i)),
			TokenCount:     4,
		})
	}
	return out
}

func TestDocumentChunkCreateBatchBoundaries(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDocumentChunkRepo(db, testutil.Logger(t))

	// Exercise counts around the insert batch size of 50.
	for _, n := range []int{0, 1, 50, 51, 101} {
		docID := uuid.New()
		created, err := repo.Create(dbc, makeChunks(docID, n))
		if err != nil {
			t.Fatalf("Create(%d chunks): %v", n, err)
		}
		if len(created) != n {
			t.Fatalf("Create(%d) returned %d rows", n, len(created))
		}
		count, err := repo.CountByDocumentID(dbc, docID)
		if err != nil {
			t.Fatalf("CountByDocumentID: %v", err)
		}
		if count != int64(n) {
			t.Fatalf("count = %d, want %d", count, n)
		}
	}
}

func TestDocumentChunkEmbeddingRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDocumentChunkRepo(db, testutil.Logger(t))

	docID := uuid.New()
	chunks := makeChunks(docID, 1)
	if _, err := repo.Create(dbc, chunks); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByIDs(dbc, []uuid.UUID{chunks[0].ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d chunks", len(got))
	}
	if len(got[0].Embedding) != vector.Dim {
		t.Fatalf("embedding dim = %d, want %d", len(got[0].Embedding), vector.Dim)
	}
	if got[0].Embedding[1] != 1 {
		t.Fatalf("embedding[1] = %v, want 1", got[0].Embedding[1])
	}

	fresh := testEmbedding(9)
	if err := repo.UpdateEmbedding(dbc, chunks[0].ID, fresh, 17); err != nil {
		t.Fatalf("UpdateEmbedding: %v", err)
	}
	got, _ = repo.GetByIDs(dbc, []uuid.UUID{chunks[0].ID})
	if got[0].Embedding[0] != 9 || got[0].TokenCount != 17 {
		t.Fatalf("after update: embedding[0]=%v token_count=%d", got[0].Embedding[0], got[0].TokenCount)
	}
}

func TestNearestByDocumentIDs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDocumentChunkRepo(db, testutil.Logger(t))

	docID := uuid.New()
	otherDoc := uuid.New()

	aligned := &types.DocumentChunk{
		ID: uuid.New(), DocumentID: docID,
		HierarchyLevel: types.LevelSection, HierarchyPath: "0001",
		Content:   "All walls must achieve a 60-minute fire rating",
		Embedding: func() vector.Vector { v := make(vector.Vector, vector.Dim); v[0] = 1; return v }(),
	}
	orthogonal := &types.DocumentChunk{
		ID: uuid.New(), DocumentID: docID,
		HierarchyLevel: types.LevelSection, HierarchyPath: "0002",
		Content:   "Practical completion occurs upon certification",
		Embedding: func() vector.Vector { v := make(vector.Vector, vector.Dim); v[5] = 1; return v }(),
	}
	outOfScope := &types.DocumentChunk{
		ID: uuid.New(), DocumentID: otherDoc,
		HierarchyLevel: types.LevelSection, HierarchyPath: "0001",
		Content:   "unrelated",
		Embedding: func() vector.Vector { v := make(vector.Vector, vector.Dim); v[0] = 1; return v }(),
	}
	if _, err := repo.Create(dbc, []*types.DocumentChunk{aligned, orthogonal, outOfScope}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	query := make(vector.Vector, vector.Dim)
	query[0] = 1

	hits, err := repo.NearestByDocumentIDs(dbc, []uuid.UUID{docID}, query, 10)
	if err != nil {
		t.Fatalf("NearestByDocumentIDs: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (scope filter)", len(hits))
	}
	if hits[0].Chunk.ID != aligned.ID {
		t.Fatalf("top hit = %s, want the aligned chunk", hits[0].Chunk.ID)
	}
	if hits[0].Score < 0.99 {
		t.Fatalf("aligned score = %v, want ~1", hits[0].Score)
	}
	if hits[1].Score > 0.01+1e-6 {
		t.Fatalf("orthogonal score = %v, want ~0", hits[1].Score)
	}
}
