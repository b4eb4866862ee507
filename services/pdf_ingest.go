package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/models"
)

// IngestPDF extracts page text from a PDF and splits it into units. PDFs
// carry no reliable heading structure, so units get an empty heading path
// and page-level positions; the hierarchy builder groups them under the
// shared unknown chapter.
func (ing *Ingester) IngestPDF(sourceID string, content []byte) ([]models.TextUnit, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var units []models.TextUnit
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from page, skipping", "page", i, "error", err)
			continue
		}

		for _, block := range strings.Split(text, "\n\n") {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			for _, piece := range splitAtBudget(block, ing.maxUnitChars) {
				units = append(units, models.TextUnit{
					ID:       uuid.NewString(),
					SourceID: sourceID,
					Content:  piece,
					Index:    len(units),
					Position: models.UnitPosition{Page: i},
				})
			}
		}
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("no text extracted from PDF")
	}
	return units, nil
}
