// Package gemini provides the Google Gemini client used for statement
// extraction.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
)

const (
	DefaultModel = "gemini-3-flash-preview"
	// DefaultMaxPDFBytes is the inline-data ceiling for a single request.
	DefaultMaxPDFBytes = 34 * 1024 * 1024
)

// Client implements the LLMProvider interface on the Gemini API.
type Client struct {
	client      *genai.Client
	model       string
	maxPDFBytes int64
	logger      *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:      genaiClient,
		model:       DefaultModel,
		maxPDFBytes: DefaultMaxPDFBytes,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateFromPDF sends the PDF inline with the prompt and returns the model
// text. Extraction uses temperature 0.
func (c *Client) GenerateFromPDF(ctx context.Context, pdfData []byte, prompt string, maxTokens int) (string, error) {
	if int64(len(pdfData)) > c.maxPDFBytes {
		return "", fmt.Errorf("PDF exceeds %d bytes", c.maxPDFBytes)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("pdf_bytes", len(pdfData)).
		Msg("Generating content from PDF")

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: pdfData}},
			{Text: prompt},
		},
	}}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

// Ensure Client implements LLMProvider
var _ interfaces.LLMProvider = (*Client)(nil)
