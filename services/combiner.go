package services

import (
	"context"
	"sort"
	"strings"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/models"
)

// contextSeparator joins unit contents so reconstructed context is stable
// and diff-able across runs.
const contextSeparator = "\n\n"

// TokenCounter measures how many model tokens a piece of text costs.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// CombinedContext is the merged text for one hierarchy node plus the exact
// units that made it in. Units dropped by truncation are not listed, keeping
// provenance accurate.
type CombinedContext struct {
	Text       string
	UnitIDs    []string
	TokenCount int
	Truncated  bool
}

// ContextCombiner merges ordered units into a single context string under a
// token budget.
type ContextCombiner struct {
	counter TokenCounter
}

// NewContextCombiner creates a combiner backed by the given token counter.
func NewContextCombiner(counter TokenCounter) *ContextCombiner {
	return &ContextCombiner{counter: counter}
}

// CombineUnits merges units in index order until adding the next unit would
// exceed maxTokens. Units are never split, so the result may come in under
// budget. A single unit that alone exceeds the budget is still included so a
// non-empty input never produces an empty context.
func (c *ContextCombiner) CombineUnits(ctx context.Context, units []models.TextUnit, maxTokens int, strategy CombineStrategy) (CombinedContext, error) {
	// Defensive: callers should pass units ordered already, but the result
	// must not depend on caller discipline.
	ordered := make([]models.TextUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var (
		parts   []string
		ids     []string
		total   int
		dropped int
	)

	for _, unit := range ordered {
		n, err := c.counter.CountTokens(ctx, unit.Content)
		if err != nil {
			return CombinedContext{}, err
		}

		if len(ids) > 0 && total+n > maxTokens {
			dropped = len(ordered) - len(ids)
			break
		}
		if len(ids) == 0 && n > maxTokens {
			logger.Warn("unit exceeds context budget, including alone",
				"unit_id", unit.ID, "source_id", unit.SourceID, "tokens", n, "max_tokens", maxTokens)
		}

		parts = append(parts, unit.Content)
		ids = append(ids, unit.ID)
		total += n
	}

	if dropped > 0 && strategy == StrategySummarizeIfExceeded {
		// No summarization capability is wired yet; behave as truncate.
		logger.Warn("summarize_if_exceeded requested without a summarizer, truncating",
			"dropped_units", dropped, "max_tokens", maxTokens)
	}

	return CombinedContext{
		Text:       strings.Join(parts, contextSeparator),
		UnitIDs:    ids,
		TokenCount: total,
		Truncated:  dropped > 0,
	}, nil
}
