package extraction

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCategory is assigned when nothing else matches
const DefaultCategory = "General Data"

// categoryKeywords is checked in order; the first set with a keyword
// contained in the table name wins.
var categoryKeywords = []struct {
	label    string
	keywords []string
}{
	{"Financial Data", []string{"financial", "finance", "revenue", "cost", "budget"}},
	{"Performance Metrics", []string{"performance", "metric", "kpi", "indicator"}},
	{"Summary Tables", []string{"summary", "overview", "total"}},
	{"Detailed Analysis", []string{"detail", "breakdown", "analysis"}},
}

// CategoryFromName maps a table name to a label using the fixed keyword table
func CategoryFromName(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.label
			}
		}
	}
	return DefaultCategory
}

// Categories is the analyzer output: category key to the table names it holds
type Categories map[string][]string

// Categorize prefers the analyzer's assignment and falls back to keywords.
// Analyzer keys such as "financial_data" are rendered as "Financial Data".
func Categorize(name string, categories Categories) string {
	keys := make([]string, 0, len(categories))
	for key := range categories {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, table := range categories[key] {
			if strings.Contains(table, name) {
				return formatCategory(key)
			}
		}
	}
	return CategoryFromName(name)
}

func formatCategory(key string) string {
	label := strings.TrimSpace(strings.ReplaceAll(key, "_", " "))
	if label == "" {
		return DefaultCategory
	}
	return cases.Title(language.English).String(label)
}
