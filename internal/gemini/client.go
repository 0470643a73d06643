// Package gemini turns voice notes and shift-sheet photos into input for the
// tracker using the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// ModelName is the Gemini model used for transcription and sheet reading.
const ModelName = "gemini-2.5-flash"

// ErrNoResponse is returned when Gemini answers without usable text.
var ErrNoResponse = errors.New("no response from Gemini")

// ContentGenerator is the subset of the Gemini API the client uses.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type modelsAdapter struct {
	models *genai.Models
}

func (m *modelsAdapter) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	resp, err := m.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("genai.GenerateContent: %w", err)
	}
	return resp, nil
}

// Client wraps the Gemini API client.
type Client struct {
	client    *genai.Client
	generator ContentGenerator
}

// NewClient creates a Gemini client with the provided API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: telemetry.HTTPClient(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:    client,
		generator: &modelsAdapter{models: client.Models},
	}, nil
}

// NewClientWithGenerator creates a Client backed by generator.
func NewClientWithGenerator(generator ContentGenerator) *Client {
	return &Client{generator: generator}
}

// GenerativeClient returns the underlying genai client.
func (c *Client) GenerativeClient() *genai.Client {
	return c.client
}

var jsonConfig = func() *genai.GenerateContentConfig {
	temp := float32(0.2)
	return &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API. You MUST respond with ONLY valid JSON, no preamble or explanation. Output a single JSON object."},
			},
		},
	}
}()

// generateJSON sends media with a prompt and returns the JSON object found
// in the reply. A deadline hit is reported as timeoutErr.
func (c *Client) generateJSON(
	ctx context.Context,
	span string,
	timeout time.Duration,
	timeoutErr error,
	media *genai.Blob,
	prompt string,
) (string, error) {
	if c.generator == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	ctx, sp := telemetry.Tracer().Start(ctx, span, trace.WithAttributes(
		attribute.String("gemini.model", ModelName),
		attribute.String("gemini.mime_type", media.MIMEType),
		attribute.Int("gemini.media_bytes", len(media.Data)),
	))
	defer sp.End()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.generator.GenerateContent(timeoutCtx, ModelName, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: media},
				{Text: prompt},
			},
		},
	}, jsonConfig)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, "generate content failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return "", timeoutErr
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := extractJSON(sb.String())
	if text == "" {
		return "", fmt.Errorf("no JSON found in response")
	}
	return text, nil
}

// extractJSON returns the outermost JSON object in text, dropping code
// fences or preamble around it.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return ""
	}
	return text[start : end+1]
}
