package services

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"digital-twin-search/models"
)

// Export formats.
const (
	ExportJSON  = "json"
	ExportExcel = "excel"
	ExportBoth  = "both"
)

// DocumentExport is the JSON export payload.
type DocumentExport struct {
	ExportInfo DocumentExportInfo       `json:"export_info"`
	Documents  []models.DocumentSummary `json:"documents"`
}

type DocumentExportInfo struct {
	ExportDate     time.Time `json:"export_date"`
	TenantID       string    `json:"tenant_id,omitempty"`
	TotalDocuments int       `json:"total_documents"`
	TotalChapters  int       `json:"total_chapters"`
	TotalTokens    int       `json:"total_tokens"`
}

// NewDocumentExport wraps a listing with its export summary.
func NewDocumentExport(tenantID string, docs []models.DocumentSummary) *DocumentExport {
	info := DocumentExportInfo{
		ExportDate:     time.Now().UTC(),
		TenantID:       tenantID,
		TotalDocuments: len(docs),
	}
	for _, d := range docs {
		info.TotalChapters += d.TotalChapters
		info.TotalTokens += d.TotalTokens
	}
	return &DocumentExport{ExportInfo: info, Documents: docs}
}

// ExportExtension returns the file extension for a format.
func ExportExtension(format string) string {
	switch format {
	case ExportExcel:
		return ".xlsx"
	case ExportBoth:
		return ".zip"
	}
	return ".json"
}

// WriteExport writes data to w in the given format. "both" writes a ZIP
// holding the JSON and Excel files.
func WriteExport(w io.Writer, data *DocumentExport, format string) error {
	switch format {
	case ExportJSON, "":
		return writeJSONExport(w, data)
	case ExportExcel:
		return writeExcelExport(w, data)
	case ExportBoth:
		zw := zip.NewWriter(w)
		jf, err := zw.Create("documents_export.json")
		if err != nil {
			return fmt.Errorf("failed to create JSON file in ZIP: %w", err)
		}
		if err := writeJSONExport(jf, data); err != nil {
			return err
		}
		xf, err := zw.Create("documents_export.xlsx")
		if err != nil {
			return fmt.Errorf("failed to create Excel file in ZIP: %w", err)
		}
		if err := writeExcelExport(xf, data); err != nil {
			return err
		}
		return zw.Close()
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func writeJSONExport(w io.Writer, data *DocumentExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func writeExcelExport(w io.Writer, data *DocumentExport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Documents"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []string{"File Name", "File Path", "Category", "Chapters", "Slices", "Tokens", "Pages"}
	for i, header := range headers {
		f.SetCellValue(sheetName, fmt.Sprintf("%c1", 'A'+i), header)
	}
	for i, d := range data.Documents {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), d.FileName)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), d.FilePath)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), d.Category)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), d.TotalChapters)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), len(d.Chapters))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), d.TotalTokens)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), d.TotalPages)
	}
	f.SetColWidth(sheetName, "A", "C", 30)

	chapterSheet := "Chapters"
	if _, err := f.NewSheet(chapterSheet); err != nil {
		return fmt.Errorf("failed to create chapters sheet: %w", err)
	}
	chapterHeaders := []string{"File Name", "Chapter", "Title", "Chapter Title", "Level", "From Page", "To Page", "Tokens", "ID"}
	for i, header := range chapterHeaders {
		f.SetCellValue(chapterSheet, fmt.Sprintf("%c1", 'A'+i), header)
	}
	row := 2
	for _, d := range data.Documents {
		for _, c := range d.Chapters {
			f.SetCellValue(chapterSheet, fmt.Sprintf("A%d", row), d.FileName)
			f.SetCellValue(chapterSheet, fmt.Sprintf("B%d", row), c.ChapterNumber)
			f.SetCellValue(chapterSheet, fmt.Sprintf("C%d", row), c.Title)
			f.SetCellValue(chapterSheet, fmt.Sprintf("D%d", row), c.ChapterTitle)
			f.SetCellValue(chapterSheet, fmt.Sprintf("E%d", row), c.Level)
			f.SetCellValue(chapterSheet, fmt.Sprintf("F%d", row), c.FromPage)
			f.SetCellValue(chapterSheet, fmt.Sprintf("G%d", row), c.ToPage)
			f.SetCellValue(chapterSheet, fmt.Sprintf("H%d", row), c.TokenCount)
			f.SetCellValue(chapterSheet, fmt.Sprintf("I%d", row), c.ID)
			row++
		}
	}

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryData := [][]interface{}{
		{"Export Date", data.ExportInfo.ExportDate.Format("2006-01-02 15:04:05")},
		{"Tenant", data.ExportInfo.TenantID},
		{"Total Documents", data.ExportInfo.TotalDocuments},
		{"Total Chapters", data.ExportInfo.TotalChapters},
		{"Total Tokens", data.ExportInfo.TotalTokens},
	}
	for i, r := range summaryData {
		for j, cell := range r {
			f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}
