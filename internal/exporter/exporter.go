// Package exporter writes the dashboard's computed tables to an Excel
// workbook for download. Nothing is persisted server-side; the workbook is
// streamed straight to the caller.
package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"twpulse/internal/analytics"
	"twpulse/internal/market"
	"twpulse/internal/pipeline"
)

// Workbook bundles everything one export run writes.
type Workbook struct {
	GeneratedAt time.Time
	StartDate   string

	Clean *market.PriceMatrix

	MissingOriginal map[string]int
	MissingDirty    map[string]int
	MissingClean    map[string]int

	Summary  []analytics.RiskReturn
	Describe []analytics.Descriptive
	Ranking  []analytics.RankEntry
}

// Write renders the workbook as xlsx into w.
func Write(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeMissingSheet(f, wb); err != nil {
		return fmt.Errorf("write missing-value sheet: %w", err)
	}
	if err := writeSummarySheet(f, wb.Summary); err != nil {
		return fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeDescribeSheet(f, wb.Describe); err != nil {
		return fmt.Errorf("write describe sheet: %w", err)
	}
	if err := writeRankingSheet(f, wb.Ranking); err != nil {
		return fmt.Errorf("write ranking sheet: %w", err)
	}
	if err := writePricesSheet(f, wb.Clean); err != nil {
		return fmt.Errorf("write prices sheet: %w", err)
	}

	// Drop the default sheet excelize creates.
	f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeMissingSheet(f *excelize.File, wb Workbook) error {
	const sheet = "Missing Values"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Security", "Original", "Dirty", "Repaired"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, label := range wb.Clean.Labels() {
		values := []interface{}{
			label,
			wb.MissingOriginal[label],
			wb.MissingDirty[label],
			wb.MissingClean[label],
		}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	meta := []interface{}{"Generated", wb.GeneratedAt.Format(time.RFC3339), "Window start", wb.StartDate}
	return f.SetSheetRow(sheet, fmt.Sprintf("A%d", row+1), &meta)
}

func writeSummarySheet(f *excelize.File, summary []analytics.RiskReturn) error {
	const sheet = "Risk Return"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Security", "Annualized Return", "Annualized Volatility"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, rr := range summary {
		values := []interface{}{rr.Label, rr.AnnualizedReturn, rr.AnnualizedVolatility}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	return nil
}

func writeDescribeSheet(f *excelize.File, rows []analytics.Descriptive) error {
	const sheet = "Describe"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Security", "Count", "Mean", "Std", "Min", "25%", "50%", "75%", "Max"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, d := range rows {
		values := []interface{}{d.Label, d.Count, d.Mean, d.Std, d.Min, d.Q25, d.Median, d.Q75, d.Max}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	return nil
}

func writeRankingSheet(f *excelize.File, ranking []analytics.RankEntry) error {
	const sheet = "Total Return"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Rank", "Security", "Return %"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, entry := range ranking {
		values := []interface{}{i + 1, entry.Label, entry.ReturnPct}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	return nil
}

func writePricesSheet(f *excelize.File, clean *market.PriceMatrix) error {
	const sheet = "Clean Prices"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := make([]interface{}, 0, clean.Cols()+1)
	header = append(header, "Date")
	for _, label := range clean.Labels() {
		header = append(header, label)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, date := range clean.Dates {
		values := make([]interface{}, 0, clean.Cols()+1)
		values = append(values, date.Format("2006-01-02"))
		for j := 0; j < clean.Cols(); j++ {
			v := clean.Cells[i][j]
			if market.IsMissing(v) {
				values = append(values, nil)
			} else {
				values = append(values, v)
			}
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	return nil
}

// BuildWorkbook assembles a Workbook from the three pipeline stages and
// their derived statistics.
func BuildWorkbook(startDate string, original, dirty, clean *market.PriceMatrix,
	summary []analytics.RiskReturn, describe []analytics.Descriptive, ranking []analytics.RankEntry) Workbook {
	return Workbook{
		GeneratedAt:     time.Now().UTC(),
		StartDate:       startDate,
		Clean:           clean,
		MissingOriginal: pipeline.CountMissing(original),
		MissingDirty:    pipeline.CountMissing(dirty),
		MissingClean:    pipeline.CountMissing(clean),
		Summary:         summary,
		Describe:        describe,
		Ranking:         ranking,
	}
}
