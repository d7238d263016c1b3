package extraction

import (
	"log/slog"
	"math"
)

// DefaultQualityScore is used when a score cannot be computed
const DefaultQualityScore = 0.5

// QualityScore rates a table in [0,1]:
//
//	0.4*(1 - null_ratio) + 0.3*numeric_column_ratio + 0.3*min(1, mean_uniqueness_ratio)
//
// rounded to two decimals. A table without rows or columns scores 0.
func QualityScore(t Table) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Quality score computation failed", "table", t.Name, "panic", r)
			score = DefaultQualityScore
		}
	}()

	rows, cols := len(t.Rows), len(t.Columns)
	if rows == 0 || cols == 0 {
		return 0.0
	}

	nulls := 0
	uniqueSum := 0.0
	numeric := 0
	for c := 0; c < cols; c++ {
		distinct := make(map[string]struct{}, rows)
		for _, row := range t.Rows {
			v := t.cell(row, c)
			if v == "" {
				nulls++
				continue
			}
			distinct[v] = struct{}{}
		}
		uniqueSum += float64(len(distinct)) / float64(rows)
		if t.Types[c].Numeric() {
			numeric++
		}
	}

	nullRatio := float64(nulls) / float64(rows*cols)
	numericRatio := float64(numeric) / float64(cols)
	uniqueRatio := math.Min(uniqueSum/float64(cols), 1.0)

	score = (1-nullRatio)*0.4 + numericRatio*0.3 + uniqueRatio*0.3
	if math.IsNaN(score) {
		return DefaultQualityScore
	}
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*100) / 100
}
