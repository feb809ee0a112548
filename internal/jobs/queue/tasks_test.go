package queue

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobIDFormats(t *testing.T) {
	docID := uuid.MustParse("7b0e8f7e-9c1d-4f4a-b9e3-1a2b3c4d5e6f")
	chunkID := uuid.MustParse("0f0e8f7e-9c1d-4f4a-b9e3-1a2b3c4d5e6f")
	reportID := uuid.MustParse("aa0e8f7e-9c1d-4f4a-b9e3-1a2b3c4d5e6f")

	at := time.UnixMilli(1700000000000)
	assert.Equal(t,
		fmt.Sprintf("doc-%s-1700000000000", docID),
		DocumentJobID(docID, at))
	assert.Equal(t, "doc-"+docID.String(), DocumentJobIDDeduped(docID))
	assert.Equal(t, "chunk-"+chunkID.String(), ChunkJobID(chunkID))
	assert.Equal(t,
		fmt.Sprintf("report-%s-section-3", reportID),
		ReportSectionJobID(reportID, 3))
}

func TestDocumentJobIDNonIdempotent(t *testing.T) {
	docID := uuid.New()
	a := DocumentJobID(docID, time.UnixMilli(1000))
	b := DocumentJobID(docID, time.UnixMilli(1001))
	assert.NotEqual(t, a, b, "timestamp suffix makes each enqueue distinct")

	// The deduped form is stable for the same document.
	assert.Equal(t, DocumentJobIDDeduped(docID), DocumentJobIDDeduped(docID))
}

func TestChunkJobIDIdempotent(t *testing.T) {
	chunkID := uuid.New()
	assert.Equal(t, ChunkJobID(chunkID), ChunkJobID(chunkID))
	assert.NotEqual(t, ChunkJobID(chunkID), ChunkJobID(uuid.New()))
}

func TestPayloadWireFormat(t *testing.T) {
	docID := uuid.New()
	setID := uuid.New()
	raw, err := json.Marshal(ProcessDocumentPayload{
		Type:          TypeProcessDocument,
		DocumentID:    docID,
		DocumentSetID: setID,
		Filename:      "spec.pdf",
		StoragePath:   "projects/p1/spec.pdf",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "process_document", decoded["type"])
	assert.Equal(t, docID.String(), decoded["documentId"])
	assert.Equal(t, setID.String(), decoded["documentSetId"])
	assert.Equal(t, "spec.pdf", decoded["filename"])
	assert.Equal(t, "projects/p1/spec.pdf", decoded["storagePath"])
}
