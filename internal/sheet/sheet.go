// Package sheet reads product lists from XLSX workbooks and writes the
// result workbook a run produces.
package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/price-scout/internal/model"
)

// ReadItems loads work items from a workbook. The first row is the
// header; nameColumn is matched case-insensitively against it. Sheet
// selection falls back to the first sheet when sheetName is empty.
// Blank product cells are kept as empty-key items so row indexes in the
// output line up with the input; the engine skips them.
func ReadItems(path, sheetName, nameColumn string) ([]model.WorkItem, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open file")
	}

	sheet, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("sheet: %q is empty", sheet.Name)
	}

	col := -1
	for j, cell := range sheet.Rows[0].Cells {
		if strings.EqualFold(strings.TrimSpace(cell.String()), nameColumn) {
			col = j
			break
		}
	}
	if col < 0 {
		return nil, eris.Errorf("sheet: column %q not found in header", nameColumn)
	}

	var items []model.WorkItem
	for i, row := range sheet.Rows[1:] {
		key := ""
		if col < len(row.Cells) {
			key = strings.TrimSpace(row.Cells[col].String())
		}
		items = append(items, model.WorkItem{Index: i, Key: key})
	}
	return items, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("sheet: %q not found in workbook", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("sheet: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// WriteResults renders a run's record into a workbook under dir and
// returns the written path. The prices sheet keeps the input row order;
// per source it carries price, status, matched name, and URL columns. A
// second sheet summarizes per-source counts.
func WriteResults(dir, label string, items []model.WorkItem, rec model.Record, sources []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "sheet: create output dir")
	}

	f := xlsx.NewFile()
	prices, err := f.AddSheet("prices")
	if err != nil {
		return "", eris.Wrap(err, "sheet: add prices sheet")
	}

	header := prices.AddRow()
	header.AddCell().Value = "product"
	for _, src := range sources {
		header.AddCell().Value = src + " price"
		header.AddCell().Value = src + " status"
		header.AddCell().Value = src + " name"
		header.AddCell().Value = src + " url"
	}

	for _, item := range items {
		if item.Key == "" {
			prices.AddRow()
			continue
		}
		row := prices.AddRow()
		row.AddCell().Value = item.Key
		for _, src := range sources {
			res, ok := rec[item.Key][src]
			if !ok {
				// Not reached before the run ended.
				row.AddCell()
				row.AddCell()
				row.AddCell()
				row.AddCell()
				continue
			}
			if res.Status == model.StatusAvailable {
				row.AddCell().SetFloat(res.Price)
			} else {
				row.AddCell()
			}
			row.AddCell().Value = string(res.Status)
			row.AddCell().Value = res.Name
			row.AddCell().Value = res.URL
		}
	}

	if err := writeSummary(f, rec, sources); err != nil {
		return "", err
	}

	name := fmt.Sprintf("prices_%s_%s.xlsx", label, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "sheet: save workbook")
	}
	return path, nil
}

func writeSummary(f *xlsx.File, rec model.Record, sources []string) error {
	sheet, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "sheet: add summary sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"source", "total", "found", "on_request", "discontinued", "not_found", "errors"} {
		header.AddCell().Value = h
	}

	stats := model.Summarize(rec, sources)
	for _, src := range sources {
		s := stats[src]
		row := sheet.AddRow()
		row.AddCell().Value = src
		row.AddCell().SetInt(s.Total)
		row.AddCell().SetInt(s.Found)
		row.AddCell().SetInt(s.OnRequest)
		row.AddCell().SetInt(s.Discontinued)
		row.AddCell().SetInt(s.NotFound)
		row.AddCell().SetInt(s.Errors)
	}
	return nil
}
