package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-extraction-platform/models"
)

func validSettings() map[models.ExtractionLevel]LevelSettings {
	return map[models.ExtractionLevel]LevelSettings{
		models.LevelUnit:    {Categories: []string{models.CategoryDecision}, MaxTokens: 1500},
		models.LevelSection: {Categories: []string{models.CategoryPattern}, MaxTokens: 6000},
		models.LevelChapter: {Categories: []string{models.CategoryMethodology}, MaxTokens: 24000},
	}
}

func TestNewLevelConfig(t *testing.T) {
	cfg, err := NewLevelConfig(validSettings())
	require.NoError(t, err)

	level, ok := cfg.LevelFor(models.CategoryPattern)
	require.True(t, ok)
	assert.Equal(t, models.LevelSection, level)

	_, ok = cfg.LevelFor("nonexistent")
	assert.False(t, ok)
}

func TestNewLevelConfigMissingLevel(t *testing.T) {
	settings := validSettings()
	delete(settings, models.LevelSection)

	_, err := NewLevelConfig(settings)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewLevelConfigBudgetsMustIncrease(t *testing.T) {
	settings := validSettings()
	s := settings[models.LevelChapter]
	s.MaxTokens = 6000 // equal to section
	settings[models.LevelChapter] = s

	_, err := NewLevelConfig(settings)
	require.Error(t, err)
}

func TestNewLevelConfigRejectsNonPositiveBudget(t *testing.T) {
	settings := validSettings()
	s := settings[models.LevelUnit]
	s.MaxTokens = 0
	settings[models.LevelUnit] = s

	_, err := NewLevelConfig(settings)
	require.Error(t, err)
}

func TestNewLevelConfigRejectsDuplicateCategory(t *testing.T) {
	settings := validSettings()
	s := settings[models.LevelChapter]
	s.Categories = append(s.Categories, models.CategoryDecision) // already at unit
	settings[models.LevelChapter] = s

	_, err := NewLevelConfig(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision")
}

func TestNewLevelConfigDefaultsStrategy(t *testing.T) {
	cfg, err := NewLevelConfig(validSettings())
	require.NoError(t, err)
	assert.Equal(t, StrategyTruncate, cfg.Settings(models.LevelUnit).Strategy)
}

func TestNewLevelConfigRejectsUnknownStrategy(t *testing.T) {
	settings := validSettings()
	s := settings[models.LevelUnit]
	s.Strategy = "compress"
	settings[models.LevelUnit] = s

	_, err := NewLevelConfig(settings)
	require.Error(t, err)
}

func TestDefaultLevelConfig(t *testing.T) {
	cfg := DefaultLevelConfig()

	for category, want := range map[string]models.ExtractionLevel{
		models.CategoryDecision:    models.LevelUnit,
		models.CategoryWarning:     models.LevelUnit,
		models.CategoryPattern:     models.LevelSection,
		models.CategoryMethodology: models.LevelChapter,
	} {
		level, ok := cfg.LevelFor(category)
		require.True(t, ok, category)
		assert.Equal(t, want, level, category)
	}

	assert.Equal(t, StrategySummarizeIfExceeded, cfg.Settings(models.LevelChapter).Strategy)
	assert.Len(t, cfg.Categories(), 4)
}
