package extraction

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// skippedSheets are bookkeeping sheets written by the extractor, not data
var skippedSheets = map[string]bool{
	"summary":  true,
	"metadata": true,
}

// ReadWorkbook loads every data sheet of a workbook as a table. Summary and
// metadata sheets and sheets without data are skipped.
func ReadWorkbook(path string) ([]Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()

	var tables []Table
	for _, sheet := range f.GetSheetList() {
		if skippedSheets[strings.ToLower(strings.TrimSpace(sheet))] {
			continue
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Warn("Failed to read sheet", "workbook", path, "sheet", sheet, "error", err)
			continue
		}

		table, ok := NewTable(sheet, rows)
		if !ok {
			slog.Debug("Skipping empty sheet", "workbook", path, "sheet", sheet)
			continue
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// WriteWorkbook stores tables as sheets of a new workbook, header row first.
// Used by the service extractor to normalize CSV answers and by tests.
func WriteWorkbook(path string, sheets map[string][][]string, order []string) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	first := true
	for _, name := range order {
		rows := sheets[name]
		if first {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("rename sheet %q: %w", name, err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}

		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for i, v := range row {
				values[i] = v
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return fmt.Errorf("write sheet %q: %w", name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
