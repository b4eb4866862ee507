package services

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"knowledge-extraction-platform/models"
)

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// Ingester splits raw document text into position-tagged units. Units are
// written once and never mutated afterwards; everything downstream keys off
// the unit IDs minted here.
type Ingester struct {
	maxUnitChars int
}

func NewIngester(maxUnitChars int) *Ingester {
	if maxUnitChars <= 0 {
		maxUnitChars = 2000
	}
	return &Ingester{maxUnitChars: maxUnitChars}
}

// IngestMarkdown parses markdown into units. Level-1 headings open chapters,
// level-2 headings open sections; deeper headings extend the heading path
// without affecting the hierarchy. Text before any heading carries an empty
// path and ends up in the shared unknown chapter.
func (ing *Ingester) IngestMarkdown(sourceID, text string) []models.TextUnit {
	lines := strings.Split(text, "\n")

	var units []models.TextUnit
	var headings []string
	var para strings.Builder
	paraStart := 0

	flush := func() {
		content := strings.TrimSpace(para.String())
		para.Reset()
		if content == "" {
			return
		}
		for _, piece := range splitAtBudget(content, ing.maxUnitChars) {
			units = append(units, models.TextUnit{
				ID:       uuid.NewString(),
				SourceID: sourceID,
				Content:  piece,
				Index:    len(units),
				Position: models.UnitPosition{
					Headings: append([]string(nil), headings...),
					Line:     paraStart + 1,
				},
			})
		}
	}

	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			depth := len(m[1])
			if depth > len(headings)+1 {
				depth = len(headings) + 1
			}
			headings = append(headings[:depth-1], m[2])
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if para.Len() == 0 {
			paraStart = i
		} else {
			para.WriteString(" ")
		}
		para.WriteString(strings.TrimSpace(line))
	}
	flush()

	return units
}

// splitAtBudget breaks text into pieces of at most limit characters, cutting
// at word boundaries.
func splitAtBudget(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var pieces []string
	for len(text) > limit {
		cut := limit
		if idx := strings.LastIndexAny(text[:limit], " \t"); idx > 0 {
			cut = idx
		}
		pieces = append(pieces, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}
