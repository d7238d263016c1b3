package extraction

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dandantas/tablescout/internal/model"
)

// ColumnType is the inferred type of a column
type ColumnType string

const (
	TypeInt    ColumnType = "int64"
	TypeFloat  ColumnType = "float64"
	TypeObject ColumnType = "object"
)

// Numeric reports whether the column holds numbers
func (c ColumnType) Numeric() bool {
	return c == TypeInt || c == TypeFloat
}

// Table is one sheet of a collaborator workbook: a header plus string cells,
// where an empty cell is a missing value.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
	Types   []ColumnType
}

// NewTable builds a table from raw rows whose first row is the header.
// It returns false when the sheet has no columns or no data rows.
func NewTable(name string, raw [][]string) (Table, bool) {
	if len(raw) == 0 {
		return Table{}, false
	}

	width := 0
	for _, row := range raw {
		width = max(width, len(row))
	}
	if width == 0 {
		return Table{}, false
	}

	rows := make([][]string, 0, len(raw)-1)
	for _, row := range raw[1:] {
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return Table{}, false
	}

	t := Table{
		Name:    name,
		Columns: columnNames(raw[0], width),
		Rows:    rows,
	}
	t.Types = make([]ColumnType, width)
	for c := range t.Types {
		t.Types[c] = t.inferType(c)
	}
	return t, true
}

// HasNumeric reports whether any column is numeric
func (t Table) HasNumeric() bool {
	for _, typ := range t.Types {
		if typ.Numeric() {
			return true
		}
	}
	return false
}

// Artifact converts the table, keeping at most previewRows rows of data
func (t Table) Artifact(category string, previewRows int) model.Artifact {
	preview := min(len(t.Rows), previewRows)
	data := make([]map[string]any, 0, preview)
	for _, row := range t.Rows[:preview] {
		record := make(map[string]any, len(t.Columns))
		for c, name := range t.Columns {
			record[name] = t.value(row, c)
		}
		data = append(data, record)
	}

	types := make(map[string]string, len(t.Columns))
	for c, name := range t.Columns {
		types[name] = string(t.Types[c])
	}

	return model.Artifact{
		Name:         t.Name,
		Shape:        [2]int{len(t.Rows), len(t.Columns)},
		Columns:      append([]string(nil), t.Columns...),
		Data:         data,
		RowCount:     len(t.Rows),
		ColCount:     len(t.Columns),
		HasNumeric:   t.HasNumeric(),
		PreviewOnly:  len(t.Rows) > previewRows,
		DataTypes:    types,
		Category:     category,
		QualityScore: QualityScore(t),
	}
}

func (t Table) cell(row []string, c int) string {
	if c < len(row) {
		return strings.TrimSpace(row[c])
	}
	return ""
}

// value renders a cell for the preview: numbers for numeric columns, "" for missing values
func (t Table) value(row []string, c int) any {
	v := t.cell(row, c)
	if v == "" {
		return ""
	}
	switch t.Types[c] {
	case TypeInt:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

func (t Table) inferType(c int) ColumnType {
	seen := false
	isInt, isFloat := true, true
	for _, row := range t.Rows {
		v := t.cell(row, c)
		if v == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isFloat = false
			break
		}
	}
	switch {
	case !seen:
		return TypeObject
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	}
	return TypeObject
}

// columnNames fills blank headers and makes duplicates unique
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	taken := make(map[string]bool, width)
	suffix := make(map[string]int, width)
	for c := 0; c < width; c++ {
		name := ""
		if c < len(header) {
			name = strings.TrimSpace(header[c])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", c)
		}
		// A suffixed name may itself be a header seen earlier
		base := name
		for taken[name] {
			suffix[base]++
			name = fmt.Sprintf("%s.%d", base, suffix[base])
		}
		taken[name] = true
		names[c] = name
	}
	return names
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
