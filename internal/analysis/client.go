// Package analysis turns one free-text query into one classified result by way of
// a generative-language service constrained to a JSON response schema.
package analysis

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"

	"github.com/Skufu/pillscope/internal/medicine"
)

// Generator is the outbound side of the analysis: one schema-constrained
// completion, or a lazy sequence of raw text fragments.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Client keeps no state between calls.
type Client struct {
	gen    Generator
	schema *genai.Schema
}

// NewClient builds a Client around gen.
func NewClient(gen Generator) (*Client, error) {
	if gen == nil {
		return nil, ErrGeneratorNil
	}
	return &Client{gen: gen, schema: ResponseSchema()}, nil
}

// payload mirrors the declared response schema. Every field is optional on the
// way in; classify decides what to do with gaps.
type payload struct {
	PromptType           json.RawMessage  `json:"prompt_type"`
	ConversationResponse json.RawMessage  `json:"conversation_response"`
	MedicineData         *medicine.Record `json:"medicine_data"`
}

// Analyze sends query with the instruction preamble and response schema, then
// parses and classifies the reply. Service failures are marked ErrService, and
// missing or malformed reply text is marked ErrNoData. No partial result is
// returned on error.
func (c *Client) Analyze(ctx context.Context, query string) (medicine.Result, error) {
	if strings.TrimSpace(query) == "" {
		return medicine.Result{}, ErrEmptyQuery
	}

	text, err := c.gen.Generate(ctx, BuildPrompt(query), c.schema)
	if err != nil {
		return medicine.Result{}, errors.Mark(errors.Wrap(err, "generate content"), ErrService)
	}

	return Parse(text)
}

// Parse decodes a raw service reply and classifies it.
func Parse(text string) (medicine.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return medicine.Result{}, ErrNoData
	}

	if text[0] != '{' {
		return medicine.Result{}, errors.Wrap(ErrNoData, "response is not a JSON object")
	}

	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return medicine.Result{}, errors.Mark(errors.Wrap(err, "decode response"), ErrNoData)
	}

	return classify(p, text), nil
}

// classify routes a decoded payload. Only "medicine" selects the record branch;
// every other tag, including a missing one, falls to the conversation arm so a
// reply from the service is never dropped.
func classify(p payload, raw string) medicine.Result {
	switch tagOf(p.PromptType) {
	case medicine.ClassMedicine:
		if p.MedicineData != nil {
			return medicine.Result{Kind: medicine.ClassMedicine, Medicine: p.MedicineData}
		}
		if reply := textOf(p.ConversationResponse); reply != "" {
			return medicine.Result{Kind: medicine.ClassConversation, Reply: reply}
		}
		return medicine.Result{Kind: medicine.ClassMedicine, Medicine: &medicine.Record{}}
	default:
		return medicine.Result{Kind: medicine.ClassConversation, Reply: conversationText(p, raw)}
	}
}

func conversationText(p payload, raw string) string {
	if reply := textOf(p.ConversationResponse); reply != "" {
		return reply
	}
	if p.MedicineData != nil && strings.TrimSpace(p.MedicineData.Description) != "" {
		return p.MedicineData.Description
	}
	return raw
}

// tagOf reads prompt_type. Anything but a JSON string yields no tag, which falls
// to the conversation arm.
func tagOf(raw json.RawMessage) medicine.Classification {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return medicine.Classification(strings.ToLower(strings.TrimSpace(s)))
}

func textOf(raw json.RawMessage) string {
	return strings.TrimSpace(medicine.TextOf(raw))
}

// AnalyzeStream passes query straight to the service and hands each text
// fragment to onChunk as it arrives. It does no parsing or classification.
func (c *Client) AnalyzeStream(ctx context.Context, query string, onChunk func(string)) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	for chunk, err := range c.gen.GenerateStream(ctx, query) {
		if err != nil {
			return errors.Mark(errors.Wrap(err, "stream content"), ErrService)
		}
		if chunk != "" {
			onChunk(chunk)
		}
	}
	return nil
}
