package analysis

import (
	"context"
	"iter"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"
)

// DefaultModel is used when no model identifier is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrAPIKeyMissing is returned by NewGemini without a credential.
var ErrAPIKeyMissing = errors.New("analysis: gemini api key is empty")

// GeminiConfig carries the opaque credentials and model selection.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Gemini implements Generator on the Google Gen AI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API backed generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	return &Gemini{client: client, model: model}, nil
}

// Model returns the configured model identifier.
func (g *Gemini) Model() string {
	return g.model
}

// Generate asks for a JSON reply constrained by schema and returns its text.
func (g *Gemini) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", err
	}
	// No candidates yields empty text, which Parse reports as ErrNoData.
	return resp.Text(), nil
}

// GenerateStream yields text fragments until the service closes the stream or
// returns an error.
func (g *Gemini) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, nil) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}
