package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/services"
)

// categoryPrompt describes what one extraction category looks for and the
// JSON shape the model must return for it.
type categoryPrompt struct {
	instruction string
	fields      string
}

var categoryPrompts = map[string]categoryPrompt{
	models.CategoryDecision: {
		instruction: "Find concrete decisions: a question that was faced, the recommendation made, and the reasoning behind it.",
		fields:      `"question", "recommendation", "reasoning"`,
	},
	models.CategoryPattern: {
		instruction: "Find recurring patterns or techniques: a named approach, the problem it addresses, and how it solves it.",
		fields:      `"name", "problem", "solution"`,
	},
	models.CategoryWarning: {
		instruction: "Find warnings and pitfalls: a risk the text calls out, its consequences, and how to mitigate it.",
		fields:      `"title", "risk", "mitigation"`,
	},
	models.CategoryMethodology: {
		instruction: "Find methodologies: a named end-to-end process, its goal, and its ordered steps.",
		fields:      `"name", "goal", "steps"`,
	},
}

// extractorResponse is the envelope the model is asked to return.
type extractorResponse struct {
	Items []struct {
		Content    map[string]any `json:"content"`
		Topics     []string       `json:"topics"`
		Confidence float64        `json:"confidence"`
	} `json:"items"`
}

// GeminiExtractor runs one extraction category against a context window.
type GeminiExtractor struct {
	client   *GeminiClient
	category string
	prompt   categoryPrompt
}

func NewGeminiExtractor(client *GeminiClient, category string) (*GeminiExtractor, error) {
	p, ok := categoryPrompts[category]
	if !ok {
		return nil, fmt.Errorf("no prompt defined for category %q", category)
	}
	return &GeminiExtractor{client: client, category: category, prompt: p}, nil
}

// NewCategoryExtractors builds one extractor per known category.
func NewCategoryExtractors(client *GeminiClient) ([]services.Extractor, error) {
	categories := []string{
		models.CategoryDecision,
		models.CategoryPattern,
		models.CategoryWarning,
		models.CategoryMethodology,
	}

	extractors := make([]services.Extractor, 0, len(categories))
	for _, cat := range categories {
		ex, err := NewGeminiExtractor(client, cat)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, ex)
	}
	return extractors, nil
}

func (e *GeminiExtractor) Category() string {
	return e.category
}

func (e *GeminiExtractor) Extract(ctx context.Context, req services.ExtractionRequest) ([]services.ExtractionResult, error) {
	prompt := e.buildPrompt(req.Context)

	raw, err := e.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var resp extractorResponse
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse %s extraction response: %w", e.category, err)
	}

	results := make([]services.ExtractionResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if len(item.Content) == 0 {
			continue
		}
		conf := item.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		results = append(results, services.ExtractionResult{
			Content:    item.Content,
			Topics:     item.Topics,
			Confidence: conf,
		})
	}
	return results, nil
}

func (e *GeminiExtractor) buildPrompt(context string) string {
	var b strings.Builder
	b.WriteString("You are extracting structured knowledge from a document excerpt.\n\n")
	b.WriteString(e.prompt.instruction)
	b.WriteString("\n\nReturn ONLY a JSON object of the form:\n")
	b.WriteString(`{"items": [{"content": {`)
	b.WriteString(e.prompt.fields)
	b.WriteString(`}, "topics": ["..."], "confidence": 0.0}]}`)
	b.WriteString("\n\nReturn {\"items\": []} if the excerpt contains nothing of this kind. ")
	b.WriteString("Confidence is between 0 and 1.\n\nExcerpt:\n")
	b.WriteString(context)
	return b.String()
}

// stripCodeFences removes a surrounding ```json block if the model added one
// despite the JSON response MIME type.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
