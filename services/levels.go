package services

import (
	"fmt"

	"knowledge-extraction-platform/models"
)

// CombineStrategy controls what the combiner does when merged units would
// exceed the level's token budget.
type CombineStrategy string

const (
	StrategyTruncate            CombineStrategy = "truncate"
	StrategySummarizeIfExceeded CombineStrategy = "summarize_if_exceeded"
)

// LevelSettings describes one extraction level: which categories run there,
// the token budget for combined context, and the combine strategy.
type LevelSettings struct {
	Categories []string
	MaxTokens  int
	Strategy   CombineStrategy
}

// LevelConfig is the static level -> categories/budget/strategy mapping.
// It is validated once at construction and read-only afterwards.
type LevelConfig struct {
	levels map[models.ExtractionLevel]LevelSettings
	byCat  map[string]models.ExtractionLevel
}

// NewLevelConfig validates and builds a level configuration. Every category
// must be assigned to exactly one level, and token budgets must be positive
// and strictly increasing from unit to section to chapter.
func NewLevelConfig(settings map[models.ExtractionLevel]LevelSettings) (*LevelConfig, error) {
	order := []models.ExtractionLevel{models.LevelUnit, models.LevelSection, models.LevelChapter}

	for _, level := range order {
		if _, ok := settings[level]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("level %q is not configured", level)}
		}
	}
	if len(settings) != len(order) {
		return nil, &ConfigError{Reason: "unknown extraction level configured"}
	}

	byCat := make(map[string]models.ExtractionLevel)
	prevBudget := 0
	for _, level := range order {
		s := settings[level]
		if s.MaxTokens <= 0 {
			return nil, &ConfigError{Reason: fmt.Sprintf("level %q: token budget must be positive, got %d", level, s.MaxTokens)}
		}
		if s.MaxTokens <= prevBudget {
			return nil, &ConfigError{Reason: fmt.Sprintf("level %q: token budget %d must exceed the budget of the level below", level, s.MaxTokens)}
		}
		prevBudget = s.MaxTokens

		switch s.Strategy {
		case StrategyTruncate, StrategySummarizeIfExceeded:
		case "":
			s.Strategy = StrategyTruncate
			settings[level] = s
		default:
			return nil, &ConfigError{Reason: fmt.Sprintf("level %q: unknown combine strategy %q", level, s.Strategy)}
		}

		for _, cat := range s.Categories {
			if owner, dup := byCat[cat]; dup {
				return nil, &ConfigError{Reason: fmt.Sprintf("category %q assigned to both %q and %q", cat, owner, level)}
			}
			byCat[cat] = level
		}
	}

	return &LevelConfig{levels: settings, byCat: byCat}, nil
}

// DefaultLevelConfig returns the standard mapping: warnings and decisions at
// unit granularity, patterns per section, methodologies per chapter.
func DefaultLevelConfig() *LevelConfig {
	cfg, err := NewLevelConfig(map[models.ExtractionLevel]LevelSettings{
		models.LevelUnit: {
			Categories: []string{models.CategoryDecision, models.CategoryWarning},
			MaxTokens:  1500,
			Strategy:   StrategyTruncate,
		},
		models.LevelSection: {
			Categories: []string{models.CategoryPattern},
			MaxTokens:  6000,
			Strategy:   StrategyTruncate,
		},
		models.LevelChapter: {
			Categories: []string{models.CategoryMethodology},
			MaxTokens:  24000,
			Strategy:   StrategySummarizeIfExceeded,
		},
	})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Settings returns the settings for a level.
func (c *LevelConfig) Settings(level models.ExtractionLevel) LevelSettings {
	return c.levels[level]
}

// LevelFor returns the level a category runs at.
func (c *LevelConfig) LevelFor(category string) (models.ExtractionLevel, bool) {
	level, ok := c.byCat[category]
	return level, ok
}

// Categories returns all configured category names.
func (c *LevelConfig) Categories() []string {
	cats := make([]string, 0, len(c.byCat))
	for cat := range c.byCat {
		cats = append(cats, cat)
	}
	return cats
}
