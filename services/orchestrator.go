package services

import (
	"context"
	"fmt"
	"time"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/models"
)

// ExtractionRequest is the context handed to a category extractor, with the
// provenance the extractor may use to shape its output.
type ExtractionRequest struct {
	Context      string
	SourceID     string
	ContextLevel models.ExtractionLevel
	ContextID    string
	UnitIDs      []string
}

// ExtractionResult is one structured payload produced by an extractor.
type ExtractionResult struct {
	Content    map[string]any
	Topics     []string
	Confidence float64
}

// Extractor turns a context string into zero or more structured payloads for
// one category. Implementations may call a model, a rule engine, or be test
// doubles; the orchestrator does not care which.
type Extractor interface {
	Category() string
	Extract(ctx context.Context, req ExtractionRequest) ([]ExtractionResult, error)
}

// ProgressFunc receives one event per processed hierarchy node or unit.
type ProgressFunc func(level models.ExtractionLevel, contextID string)

// Orchestrator walks the hierarchy of a source and runs every extraction
// category at its configured level. It never persists anything: it is a pure
// function over its inputs plus the extractor capability.
type Orchestrator struct {
	levels     *LevelConfig
	combiner   *ContextCombiner
	extractors map[string]Extractor

	// Progress, when set, is invoked once per processed node or unit. It is
	// optional and must not be a hard dependency of extraction.
	Progress ProgressFunc
}

// NewOrchestrator wires extractors to the level configuration. Registering an
// extractor whose category has no level assignment is a configuration error.
func NewOrchestrator(levels *LevelConfig, combiner *ContextCombiner, extractors []Extractor) (*Orchestrator, error) {
	byCat := make(map[string]Extractor, len(extractors))
	for _, ex := range extractors {
		cat := ex.Category()
		if _, ok := levels.LevelFor(cat); !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("extractor category %q has no level assignment", cat)}
		}
		if _, dup := byCat[cat]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate extractor for category %q", cat)}
		}
		byCat[cat] = ex
	}
	return &Orchestrator{levels: levels, combiner: combiner, extractors: byCat}, nil
}

// ExtractDocument builds the hierarchy for the units and runs every
// registered category against the right level. A failing extractor or a
// badly-formed node is logged and skipped; it must never prevent extraction
// of the remaining categories or nodes.
func (o *Orchestrator) ExtractDocument(ctx context.Context, units []models.TextUnit, sourceID string) []models.ExtractionRecord {
	tree := BuildHierarchy(units, sourceID)

	var records []models.ExtractionRecord

	chapterCfg := o.levels.Settings(models.LevelChapter)
	for _, chapter := range tree.Chapters {
		records = append(records, o.extractNode(ctx, sourceID, models.LevelChapter, chapter.ID, chapter.Units, chapterCfg)...)
	}

	sectionCfg := o.levels.Settings(models.LevelSection)
	for _, chapter := range tree.Chapters {
		for _, section := range chapter.Sections {
			records = append(records, o.extractNode(ctx, sourceID, models.LevelSection, section.ID, section.Units, sectionCfg)...)
		}
	}

	unitCats := o.levels.Settings(models.LevelUnit).Categories
	for _, unit := range units {
		req := ExtractionRequest{
			Context:      unit.Content,
			SourceID:     sourceID,
			ContextLevel: models.LevelUnit,
			ContextID:    unit.ID,
			UnitIDs:      []string{unit.ID},
		}
		records = append(records, o.runCategories(ctx, unitCats, req)...)
		o.reportProgress(models.LevelUnit, unit.ID)
	}

	return records
}

// extractNode combines a node's units into context and runs the level's
// categories over it.
func (o *Orchestrator) extractNode(ctx context.Context, sourceID string, level models.ExtractionLevel, nodeID string, units []models.TextUnit, cfg LevelSettings) []models.ExtractionRecord {
	defer o.reportProgress(level, nodeID)

	if len(cfg.Categories) == 0 || len(units) == 0 {
		return nil
	}

	combined, err := o.combiner.CombineUnits(ctx, units, cfg.MaxTokens, cfg.Strategy)
	if err != nil {
		logger.Error("context assembly failed, skipping node",
			"source_id", sourceID, "level", level, "context_id", nodeID, "error", err)
		return nil
	}

	req := ExtractionRequest{
		Context:      combined.Text,
		SourceID:     sourceID,
		ContextLevel: level,
		ContextID:    nodeID,
		UnitIDs:      combined.UnitIDs,
	}
	return o.runCategories(ctx, cfg.Categories, req)
}

// runCategories invokes each category's extractor against the request,
// isolating failures so one defective category cannot starve the others.
func (o *Orchestrator) runCategories(ctx context.Context, categories []string, req ExtractionRequest) []models.ExtractionRecord {
	var records []models.ExtractionRecord

	for _, cat := range categories {
		ex, ok := o.extractors[cat]
		if !ok {
			continue
		}

		results, err := ex.Extract(ctx, req)
		if err != nil {
			logger.Error("extractor failed, skipping category for this context",
				"category", cat, "source_id", req.SourceID,
				"level", req.ContextLevel, "context_id", req.ContextID, "error", err)
			continue
		}

		for _, res := range results {
			records = append(records, models.ExtractionRecord{
				SourceID:      req.SourceID,
				Category:      cat,
				Content:       res.Content,
				Topics:        res.Topics,
				ContextLevel:  req.ContextLevel,
				ContextID:     req.ContextID,
				UnitIDs:       req.UnitIDs,
				SchemaVersion: models.RecordSchemaVersion,
				Confidence:    res.Confidence,
				ExtractedAt:   time.Now(),
			})
		}
	}

	return records
}

func (o *Orchestrator) reportProgress(level models.ExtractionLevel, contextID string) {
	if o.Progress != nil {
		o.Progress(level, contextID)
	}
}
