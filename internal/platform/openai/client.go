package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/planhaus/planhaus-backend/internal/platform/envutil"
	"github.com/planhaus/planhaus-backend/internal/platform/httpx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/vector"
)

// Client is the slice of the OpenAI API this backend uses: embeddings for
// ingestion/retrieval and plain text generation for report sections.
type Client interface {
	// Embed returns one vector per input, in input order, plus the total
	// prompt tokens the call consumed. Every vector is vector.Dim long or
	// the call errors; the caller owns provider-side batch limits.
	Embed(ctx context.Context, inputs []string) ([]vector.Vector, int, error)

	// EmbedOne is the single-item convenience form used by the re-embed
	// path and by query embedding.
	EmbedOne(ctx context.Context, input string) (vector.Vector, int, error)

	GenerateText(ctx context.Context, system, user string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := envutil.Str("OPENAI_MODEL", "gpt-4o-mini")
	embedModel := envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-large")

	timeout := time.Duration(envutil.Int("OPENAI_TIMEOUT_SECONDS", 120)) * time.Second

	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: envutil.Int("OPENAI_MAX_RETRIES", 3),
	}, nil
}

type openAIHTTPError struct {
	Status int
	Body   string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai: http %d: %s", e.Status, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int { return e.Status }

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= c.maxRetries || !httpx.IsRetryableError(err) {
			return lastErr
		}
		sleep := httpx.JitterSleep(time.Duration(1<<attempt) * time.Second)
		c.log.Warn("OpenAI call retrying", "path", path, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (c *client) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return &openAIHTTPError{Status: resp.StatusCode, Body: msg}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("openai: decode response: %w", err)
		}
	}
	return nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([]vector.Vector, int, error) {
	if len(inputs) == 0 {
		return []vector.Vector{}, 0, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embeddingsRequest{
		Model:      c.embedModel,
		Input:      clean,
		Dimensions: vector.Dim,
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp); err != nil {
		return nil, 0, err
	}

	out := make([]vector.Vector, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make(vector.Vector, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}

	for i := range out {
		if out[i] == nil {
			return nil, 0, fmt.Errorf("openai: embeddings response missing index %d (requested=%d returned=%d model=%s)",
				i, len(clean), len(resp.Data), c.embedModel)
		}
		if len(out[i]) != vector.Dim {
			return nil, 0, fmt.Errorf("openai: embedding %d: %w: got %d, want %d", i, vector.ErrDimension, len(out[i]), vector.Dim)
		}
	}
	return out, resp.Usage.PromptTokens, nil
}

func (c *client) EmbedOne(ctx context.Context, input string) (vector.Vector, int, error) {
	vecs, tokens, err := c.Embed(ctx, []string{input})
	if err != nil {
		return nil, 0, err
	}
	return vecs[0], tokens, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var resp chatResponse
	if err := c.do(ctx, "POST", "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty chat response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
