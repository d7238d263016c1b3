package source

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/dandantas/tablescout/internal/model"
)

var academicTerms = []string{"machine learning", "ai", "artificial intelligence", "data science"}

// GenerateQueries builds the search queries issued for a topic, best first
func GenerateQueries(topic string) []string {
	base := strings.TrimSpace(topic)

	queries := []string{
		base + " filetype:pdf",
		base + " research paper filetype:pdf",
		base + " study analysis filetype:pdf",
		`"` + base + `" PDF download`,
		base + " report findings PDF",
	}

	if isAcademic(base) {
		queries = append(queries,
			base+" arxiv filetype:pdf",
			base+" conference paper filetype:pdf",
		)
	}
	return queries
}

// isAcademic matches whole words so that e.g. "chain" does not count as "ai"
func isAcademic(topic string) bool {
	padded := " " + strings.Join(strings.FieldsFunc(strings.ToLower(topic), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), " ") + " "
	for _, term := range academicTerms {
		if strings.Contains(padded, " "+term+" ") {
			return true
		}
	}
	return false
}

var documentHosts = []string{
	"arxiv.org/pdf/",
	"researchgate.net/",
	"semanticscholar.org/",
	"ieeexplore.ieee.org/",
	"acm.org/",
	"springer.com/",
	"sciencedirect.com/",
	".edu/",
	"github.com/",
	"papers.nips.cc/",
	"openreview.net/",
}

// IsDocumentLink reports whether a URL is likely to serve a document
func IsDocumentLink(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	if hasPDFPath(lower) {
		return true
	}
	for _, host := range documentHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

func hasPDFPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(raw), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// TitleFromURL derives a readable title from the last path segment of a URL
func TitleFromURL(raw string) string {
	const fallback = "Research Paper"

	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return fallback
	}
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}

	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = nonAlphanumeric.ReplaceAllString(name, " ")
	name = strings.Join(strings.Fields(name), " ")
	if len(name) > 100 {
		name = name[:100]
	}
	if name == "" {
		return fallback
	}
	return name
}

// NormalizeURL is the dedupe key: case-insensitive, without trailing slashes or fragments
func NormalizeURL(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(key, '#'); i >= 0 {
		key = key[:i]
	}
	return strings.TrimRight(key, "/")
}

// Rank deduplicates candidates by normalized URL, keeping the first
// occurrence, sorts them by descending relevance (ties keep discovery
// order) and truncates the result to limit.
func Rank(candidates []model.Candidate, limit int) []model.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := NormalizeURL(c.URL)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].RelevanceScore > unique[j].RelevanceScore
	})

	if limit >= 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
