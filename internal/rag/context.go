package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// Page matches are appended as short excerpts.
	pageExcerptLen = 400

	// Confidence heuristics. QA facts are curated and more reliable
	// than raw page text, so they score higher and cap higher.
	confidenceFloor = 0.1
	qaConfidenceCap = 0.95
	pageDiscount    = 0.8
	pageCap         = 0.85
)

// Assembler renders search results into a length-bounded context string
// and derives confidence and source attribution from them.
type Assembler struct {
	maxContextLength int
	maxSources       int
}

func NewAssembler(maxContextLength, maxSources int) *Assembler {
	if maxContextLength <= 0 {
		maxContextLength = 4000
	}
	if maxSources <= 0 {
		maxSources = 5
	}
	return &Assembler{
		maxContextLength: maxContextLength,
		maxSources:       maxSources,
	}
}

// BuildContext merges matches into one context string. QA matches come
// first as Q:/A: pairs; page excerpts are appended only while under the
// length budget. When nothing cleared the threshold a generic fallback
// naming the site is substituted, never an empty context.
func (a *Assembler) BuildContext(results SearchResults, siteName string) string {
	var b strings.Builder

	if len(results.QAMatches) > 0 {
		b.WriteString("Relevant Information:\n")
		for _, m := range results.QAMatches {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", m.Fact.Question, m.Fact.Answer)
		}
	}

	if len(results.PageMatches) > 0 && b.Len() < a.maxContextLength {
		b.WriteString("Website Content:\n")
		for _, m := range results.PageMatches {
			if b.Len() >= a.maxContextLength {
				break
			}
			excerpt := truncateRunes(m.Page.BodyText, pageExcerptLen)
			fmt.Fprintf(&b, "Page: %s\nContent: %s...\n\n", m.Page.Title, excerpt)
		}
	}

	context := strings.TrimSpace(b.String())
	if context == "" {
		context = fmt.Sprintf("General information about the website %s. No closely matching content was found for this question.", siteName)
	}

	if len(context) > a.maxContextLength {
		context = truncateRunes(context, a.maxContextLength) + "..."
	}
	return context
}

// truncateRunes cuts s to at most n bytes without splitting a multibyte
// rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Confidence scores how well the retrieved context supports an answer.
// No matches at all yields the fixed floor. QA matches score as their
// mean similarity capped below full certainty; page-only matches are
// discounted and capped lower.
func (a *Assembler) Confidence(results SearchResults) float64 {
	if len(results.QAMatches) == 0 && len(results.PageMatches) == 0 {
		return confidenceFloor
	}

	if len(results.QAMatches) > 0 {
		return min(meanFactSimilarity(results.QAMatches), qaConfidenceCap)
	}

	var sum float64
	for _, m := range results.PageMatches {
		sum += m.Similarity
	}
	mean := sum / float64(len(results.PageMatches))
	return min(mean*pageDiscount, pageCap)
}

func meanFactSimilarity(matches []FactMatch) float64 {
	var sum float64
	for _, m := range matches {
		sum += m.Similarity
	}
	return sum / float64(len(matches))
}

// Sources returns the deduplicated union of matched facts' source pages
// and matched page URLs, truncated to the configured count.
func (a *Assembler) Sources(results SearchResults) []string {
	seen := map[string]bool{}
	var sources []string
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			sources = append(sources, url)
		}
	}

	for _, m := range results.QAMatches {
		for _, url := range m.Fact.SourcePages {
			add(url)
		}
	}
	for _, m := range results.PageMatches {
		add(m.Page.URL)
	}

	if len(sources) > a.maxSources {
		sources = sources[:a.maxSources]
	}
	return sources
}
