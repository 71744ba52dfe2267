// Package extract asks Gemini for the entity document or the plain text of a
// PDF statement.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/statement-ledger/internal/entities"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// DefaultModelName is the default Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Client calls Gemini with the statement PDF attached inline.
type Client struct {
	genai *genai.Client
	model string
}

// New creates a client using the environment's Gemini or Vertex AI settings.
func New(ctx context.Context, model string) (*Client, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("New: create genai client: %w", err)
	}
	return &Client{genai: client, model: model}, nil
}

// ExtractEntities returns the entity document for pdf.
func (c *Client) ExtractEntities(ctx context.Context, pdf []byte) (entities.Document, error) {
	raw, err := c.generate(ctx, entitiesPrompt, pdf)
	if err != nil {
		return entities.Document{}, fmt.Errorf("ExtractEntities: %w", err)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return entities.Document{}, fmt.Errorf("ExtractEntities: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().
		Str("document_type", doc.DocumentType).
		Int("entities", len(doc.Entities)).
		Msg("entities extracted")
	return doc, nil
}

// ExtractText returns the statement transcribed as plain text.
func (c *Client) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	raw, err := c.generate(ctx, textPrompt, pdf)
	if err != nil {
		return "", fmt.Errorf("ExtractText: %w", err)
	}
	return CleanText(raw), nil
}

func (c *Client) generate(ctx context.Context, prompt string, pdf []byte) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ParseDocument decodes a model response into an entity document.
func ParseDocument(raw string) (entities.Document, error) {
	var doc entities.Document
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &doc); err != nil {
		return entities.Document{}, fmt.Errorf("ParseDocument: unmarshal JSON: %w", err)
	}
	return doc, nil
}

// CleanJSON strips Markdown fences and any text around the outermost JSON
// object.
func CleanJSON(raw string) string {
	s := CleanText(raw)
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// CleanText removes a Markdown code fence wrapping the response.
func CleanText(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line (``` or ```json).
	idx := strings.Index(s, "\n")
	if idx == -1 {
		return s
	}
	s = s[idx+1:]
	if end := strings.LastIndex(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
