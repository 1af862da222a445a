package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/nixlim/growwatch/internal/loader"
)

// BuildXLSX renders the alerts on an "alerts" sheet and the anomalies on an
// "anomalies" sheet.
func BuildXLSX(rep Report, p *loader.TimeParser) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	alertsSheet := "alerts"
	anomaliesSheet := "anomalies"
	if err := f.SetSheetName("Sheet1", alertsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(anomaliesSheet); err != nil {
		return nil, err
	}

	for i, h := range append(append([]string(nil), Headers...), "Elapsed (minutes)") {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(alertsSheet, cell, h)
	}
	for i, r := range rep.Rows {
		row := i + 2
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("A%d", row), r.Rule)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("B%d", row), p.Format(r.StartedAt))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("C%d", row), p.Format(r.FinishedAt))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("D%d", row), FormatDuration(r.Elapsed))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("E%d", row), int64(r.Elapsed/time.Minute))
	}

	_ = f.SetCellValue(anomaliesSheet, "A1", "Dimension")
	_ = f.SetCellValue(anomaliesSheet, "B1", "Value")
	_ = f.SetCellValue(anomaliesSheet, "C1", "Reading at")
	_ = f.SetCellValue(anomaliesSheet, "D1", "Engine at")
	for i, a := range rep.Anomalies {
		row := i + 2
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("A%d", row), string(a.Reading.Dimension))
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("B%d", row), a.Reading.Value)
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("C%d", row), p.Format(a.Reading.Timestamp))
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("D%d", row), p.Format(a.Current))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-table A4 summary of the alerts.
func BuildPDF(rep Report, p *loader.TimeParser) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Grow house disease conditions")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(rep.Rows)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Out-of-order readings: %d", len(rep.Anomalies)))
	pdf.Ln(8)

	widths := []float64{50, 45, 45, 40}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range Headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range rep.Rows {
		for i, c := range r.Cells(p) {
			align := "L"
			if i > 0 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
