package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

// DocumentAI extracts plain text from binary document formats through a
// Document AI OCR processor. Structure detection happens downstream; this
// client only produces text.
type DocumentAI struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	processor string
}

// NewDocumentAI returns nil (not an error) when the processor is not
// configured; callers fall back to plain-text-only parsing.
func NewDocumentAI(ctx context.Context, log *logger.Logger) (*DocumentAI, error) {
	projectID := strings.TrimSpace(os.Getenv("DOCAI_PROJECT_ID"))
	location := strings.TrimSpace(os.Getenv("DOCAI_LOCATION"))
	processorID := strings.TrimSpace(os.Getenv("DOCAI_PROCESSOR_ID"))
	if projectID == "" || processorID == "" {
		return nil, nil
	}
	if location == "" {
		location = "us"
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	return &DocumentAI{
		log:       log.With("service", "DocumentAI"),
		client:    client,
		processor: fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID),
	}, nil
}

func (d *DocumentAI) ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	if d == nil || d.client == nil {
		return "", fmt.Errorf("documentai not configured")
	}
	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("documentai process %q: %w", filename, err)
	}
	doc := resp.GetDocument()
	if doc == nil {
		return "", fmt.Errorf("documentai: empty document for %q", filename)
	}
	return doc.GetText(), nil
}

func (d *DocumentAI) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}
