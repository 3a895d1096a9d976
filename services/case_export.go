package services

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// CaseExportHeader is the column order shared by the CSV and XLSX exports
var CaseExportHeader = []string{
	"case_number",
	"user_email",
	"platform_link",
	"created_at",
	"screenshot_links",
	"status",
}

const exportSheetName = "Cases"

// ScreenshotDownloadPath is the owner-checked route for a case screenshot
func ScreenshotDownloadPath(caseID, fileKey string) string {
	params := url.Values{}
	params.Set("caseId", caseID)
	params.Set("fileKey", fileKey)
	return "/api/cases/screenshots?" + params.Encode()
}

// ExportFileName returns the dated export name with the given extension
func ExportFileName(now time.Time, ext string) string {
	return fmt.Sprintf("stopthetea-cases-%s.%s", now.UTC().Format("2006-01-02"), ext)
}

// CaseExportRows flattens admin summaries into export rows. Screenshot links
// are absolute download URLs joined with " | ".
func CaseExportRows(cases []AdminCaseSummary, origin string) [][]string {
	origin = strings.TrimSuffix(origin, "/")
	rows := make([][]string, 0, len(cases))
	for _, record := range cases {
		links := make([]string, 0, len(record.ScreenshotKeys))
		for _, key := range record.ScreenshotKeys {
			if key = NormalizeStorageKey(key); key != "" {
				links = append(links, origin+ScreenshotDownloadPath(record.ID, key))
			}
		}
		rows = append(rows, []string{
			record.CaseNumber,
			record.UserEmail,
			record.PlatformLink(),
			record.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
			strings.Join(links, " | "),
			string(record.Status),
		})
	}
	return rows
}

func quoteCSVValue(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// BuildCaseCSV renders the export with every value double-quoted and CRLF line endings
func BuildCaseCSV(cases []AdminCaseSummary, origin string) []byte {
	var buf bytes.Buffer
	lines := append([][]string{CaseExportHeader}, CaseExportRows(cases, origin)...)
	for i, line := range lines {
		if i > 0 {
			buf.WriteString("\r\n")
		}
		for j, value := range line {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quoteCSVValue(value))
		}
	}
	return buf.Bytes()
}

// BuildCaseWorkbook renders the export as a single-sheet XLSX file
func BuildCaseWorkbook(cases []AdminCaseSummary, origin string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	lines := append([][]string{CaseExportHeader}, CaseExportRows(cases, origin)...)
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(line))
		for j, v := range line {
			values[j] = v
		}
		if err := f.SetSheetRow(exportSheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	lastHeader, _ := excelize.CoordinatesToCellName(len(CaseExportHeader), 1)
	f.SetCellStyle(exportSheetName, "A1", lastHeader, headerStyle)
	f.SetColWidth(exportSheetName, "A", "F", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
