package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitechat/engine/internal/kb"
)

// Content-area selectors tried in order. The longest candidate text
// wins, not the first match; the full body is the fallback.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	".main-content",
	"#content",
	"#main",
	".post-content",
	".entry-content",
}

const nonContentSelector = "script, style, noscript, iframe, nav, header, footer, .advertisement, .ads"

// Extractor converts raw markup into normalized Page records, rejecting
// pages below the minimum content-quality bar.
type Extractor struct {
	minWordCount int
}

func NewExtractor(minWordCount int) *Extractor {
	if minWordCount <= 0 {
		minWordCount = 20
	}
	return &Extractor{minWordCount: minWordCount}
}

// Extract parses html into a Page. Returns kb.ErrContentTooThin when
// the extracted word count is below the quality threshold.
func (e *Extractor) Extract(pageURL string, html []byte) (kb.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return kb.Page{}, fmt.Errorf("parse markup: %w", err)
	}

	// Headings and nav links come from the full document, before the
	// chrome is stripped for body-text selection.
	headings := extractHeadings(doc)
	navLinks := extractNavLinks(doc, pageURL)

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).Attr("content")
	if description == "" {
		description, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
	}
	keywords, _ := doc.Find(`meta[name="keywords"]`).Attr("content")

	doc.Find(nonContentSelector).Remove()

	var bodyText string
	for _, sel := range contentSelectors {
		candidate := doc.Find(sel).Text()
		if len(candidate) > len(bodyText) {
			bodyText = candidate
		}
	}
	if bodyText == "" {
		bodyText = doc.Find("body").Text()
	}
	bodyText = strings.Join(strings.Fields(bodyText), " ")

	wordCount := len(strings.Fields(bodyText))
	if wordCount < e.minWordCount {
		return kb.Page{}, fmt.Errorf("%w: %d words at %s", kb.ErrContentTooThin, wordCount, pageURL)
	}

	return kb.Page{
		URL:         pageURL,
		Title:       title,
		Description: strings.TrimSpace(description),
		Keywords:    strings.TrimSpace(keywords),
		BodyText:    bodyText,
		Headings:    headings,
		NavLinks:    navLinks,
		WordCount:   wordCount,
		ScrapedAt:   time.Now().UTC(),
	}, nil
}

func extractHeadings(doc *goquery.Document) []kb.Heading {
	var headings []kb.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level := int(s.Nodes[0].Data[1] - '0')
		headings = append(headings, kb.Heading{Level: level, Text: text})
	})
	return headings
}

func extractNavLinks(doc *goquery.Document, pageURL string) []kb.NavLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	var links []kb.NavLink
	doc.Find("nav a, .nav a, .navigation a, .menu a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		href, ok := s.Attr("href")
		if text == "" || !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, kb.NavLink{Text: text, Href: base.ResolveReference(ref).String()})
	})
	return links
}

// ExtractLinks returns the raw href values of all anchors in html,
// skipping fragments, mailto: and tel: links. Used during breadth-first
// discovery.
func ExtractLinks(html []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		links = append(links, href)
	})
	return links
}
