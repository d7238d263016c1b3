package source

import (
	"strings"
	"testing"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestGenerateQueries(t *testing.T) {
	queries := GenerateQueries("  supply chain resilience ")
	assert.Equal(t, []string{
		"supply chain resilience filetype:pdf",
		"supply chain resilience research paper filetype:pdf",
		"supply chain resilience study analysis filetype:pdf",
		`"supply chain resilience" PDF download`,
		"supply chain resilience report findings PDF",
	}, queries)

	academic := GenerateQueries("Machine Learning in healthcare")
	assert.Len(t, academic, 7)
	assert.Equal(t, "Machine Learning in healthcare arxiv filetype:pdf", academic[5])

	assert.Len(t, GenerateQueries("AI adoption"), 7)
}

func TestIsDocumentLink(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/report.PDF":      true,
		"https://example.com/report.pdf?dl=1": true,
		"https://arxiv.org/pdf/2101.00001":    true,
		"http://cs.stanford.edu/papers/x":     true,
		"https://example.com/blog/post":       false,
		"/url?q=https://example.com/a.pdf":    false,
		"ftp://example.com/report.pdf":        false,
		"":                                    false,
	}
	for link, want := range cases {
		assert.Equal(t, want, IsDocumentLink(link), link)
	}
}

func TestTitleFromURL(t *testing.T) {
	assert.Equal(t, "Annual Report 2024 final", TitleFromURL("https://x.org/docs/Annual_Report-2024(final).pdf"))
	assert.Equal(t, "Research Paper", TitleFromURL("https://x.org/"))
	assert.Equal(t, "Research Paper", TitleFromURL("https://x.org/%%%.pdf"))
	assert.Len(t, TitleFromURL("https://x.org/"+strings.Repeat("a", 150)+".pdf"), 100)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, NormalizeURL("https://Example.com/A.pdf/"), NormalizeURL("https://example.com/a.pdf"))
	assert.Equal(t, "https://example.com/a.pdf", NormalizeURL(" https://example.com/a.pdf#page=2 "))
}

func TestRankIsStable(t *testing.T) {
	in := []model.Candidate{
		{URL: "https://x/1.pdf", RelevanceScore: 0.5},
		{URL: "https://x/2.pdf", RelevanceScore: 0.7},
		{URL: "https://x/3.pdf", RelevanceScore: 0.5},
		{URL: "https://x/2.pdf/", RelevanceScore: 1.0},
	}
	out := Rank(in, 10)
	urls := make([]string, len(out))
	for i, c := range out {
		urls[i] = c.URL
	}
	assert.Equal(t, []string{"https://x/2.pdf", "https://x/1.pdf", "https://x/3.pdf"}, urls)
	assert.Empty(t, Rank(in, 0))
}
