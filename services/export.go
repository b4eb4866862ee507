package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"knowledge-extraction-platform/models"
)

// RecordFinder queries persisted extraction records with optional filters.
type RecordFinder interface {
	FindRecords(ctx context.Context, sourceID, category string, level models.ExtractionLevel) ([]models.ExtractionRecord, error)
}

// ExportService renders extraction records as an Excel workbook.
type ExportService struct {
	records RecordFinder
}

func NewExportService(records RecordFinder) *ExportService {
	return &ExportService{records: records}
}

// ExportExcel builds a workbook of the matching records, one data sheet plus
// a per-category summary sheet.
func (es *ExportService) ExportExcel(ctx context.Context, sourceID, category string, level models.ExtractionLevel) (*bytes.Buffer, int, error) {
	records, err := es.records.FindRecords(ctx, sourceID, category, level)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Error closing Excel file: %v\n", err)
		}
	}()

	sheetName := "Extractions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Source ID", "Category", "Level", "Context ID",
		"Summary", "Topics", "Unit Count", "Confidence", "Vector Synced", "Extracted At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	countsByCategory := make(map[string]int)
	for rowIdx, rec := range records {
		row := rowIdx + 2 // Start from row 2 (after headers)

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), rec.ID.Hex())
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), rec.SourceID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), rec.Category)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), string(rec.Level()))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), rec.ContextID)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), SummarizeContent(rec.Category, rec.Content))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), strings.Join(rec.Topics, ", "))
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), len(rec.UnitIDs))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), rec.Confidence)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), rec.VectorSynced)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), rec.ExtractedAt.Format("2006-01-02 15:04:05"))

		countsByCategory[rec.Category]++
	}

	// Auto-fit columns
	for i := 0; i < len(headers); i++ {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 18)
	}

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, 0, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	f.SetCellValue(summarySheet, "A1", "Category")
	f.SetCellValue(summarySheet, "B1", "Records")
	row := 2
	for cat, count := range countsByCategory {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), cat)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), count)
		row++
	}
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), len(records))

	// Remove default sheet
	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return &buf, len(records), nil
}
