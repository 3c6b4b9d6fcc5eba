// Package export renders location history into PDF and XLSX track reports
// for the lojackctl export command.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"lojack-go/lojack"
)

// BuildTrackPDF renders a PDF track report for one asset.
func BuildTrackPDF(assetID, assetName string, locations []lojack.Location) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Track Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Asset: %s", assetID))
	pdf.Ln(5)
	if assetName != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Name: %s", assetName))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Points: %d", len(locations)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(42, 6, "Time (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Latitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Longitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Speed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Accuracy", "1", 0, "C", false, 0, "")
	pdf.CellFormat(48, 6, "Event", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, loc := range locations {
		pdf.CellFormat(42, 6, formatTime(loc.Timestamp), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, formatFloat(loc.Latitude, "%.5f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, formatFloat(loc.Longitude, "%.5f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, formatFloat(loc.Speed, "%.1f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, formatFloat(loc.Accuracy, "%.0f m"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(48, 6, formatString(loc.EventType), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTrackXLSX renders an XLSX track report for one asset.
func BuildTrackXLSX(assetID, assetName string, locations []lojack.Location) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	trackSheet := "track"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(trackSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Track Report")
	_ = f.SetCellValue(summarySheet, "A3", "Asset")
	_ = f.SetCellValue(summarySheet, "B3", assetID)
	_ = f.SetCellValue(summarySheet, "A4", "Name")
	_ = f.SetCellValue(summarySheet, "B4", assetName)
	_ = f.SetCellValue(summarySheet, "A5", "Points")
	_ = f.SetCellValue(summarySheet, "B5", len(locations))
	_ = f.SetCellValue(summarySheet, "A6", "Generated")
	_ = f.SetCellValue(summarySheet, "B6", time.Now().UTC().Format(time.RFC3339))

	headers := []string{"Time (UTC)", "Latitude", "Longitude", "Speed", "Heading", "Accuracy (m)", "Odometer", "Battery (V)", "Event", "Address"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(trackSheet, cell, h)
	}
	for row, loc := range locations {
		values := []any{
			formatTime(loc.Timestamp),
			floatOrNil(loc.Latitude),
			floatOrNil(loc.Longitude),
			floatOrNil(loc.Speed),
			floatOrNil(loc.Heading),
			floatOrNil(loc.Accuracy),
			floatOrNil(loc.Odometer),
			floatOrNil(loc.BatteryVoltage),
			formatString(loc.EventType),
			formatString(loc.Address),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(trackSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatFloat(v *float64, layout string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(layout, *v)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
