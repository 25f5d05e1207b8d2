package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitechat/engine/internal/kb"
)

// -- Sample data ---------------------------------------------------------------

var sampleHTML = []byte(`<html>
<head>
  <title>Acme Widgets</title>
  <meta name="description" content="Widgets for every occasion">
  <meta name="keywords" content="widgets, acme">
</head>
<body>
  <script>var x = 1;</script>
  <style>.a { color: red; }</style>
  <nav><a href="/about">About us</a><a href="/contact">Contact</a></nav>
  <main>
    <h1>Welcome to Acme</h1>
    <h2>Our widgets</h2>
    <p>We build the finest widgets known to humankind, each one carefully
    assembled by artisans with decades of experience in widget craft and
    a deep commitment to quality and customer satisfaction worldwide.</p>
  </main>
  <footer>Copyright Acme</footer>
</body></html>`)

// -- Extract -------------------------------------------------------------------

func TestExtract_StripsScriptStyleAndChrome(t *testing.T) {
	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", sampleHTML)
	require.NoError(t, err)

	assert.NotContains(t, page.BodyText, "var x")
	assert.NotContains(t, page.BodyText, "color: red")
	assert.NotContains(t, page.BodyText, "Copyright Acme")
}

func TestExtract_PreservesMainContent(t *testing.T) {
	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", sampleHTML)
	require.NoError(t, err)

	assert.Contains(t, page.BodyText, "finest widgets")
	assert.Equal(t, "Acme Widgets", page.Title)
	assert.Equal(t, "Widgets for every occasion", page.Description)
	assert.Equal(t, "widgets, acme", page.Keywords)
}

func TestExtract_ChoosesLongestContentArea(t *testing.T) {
	html := []byte(`<html><body>
		<main>short main text here</main>
		<article>` + strings.Repeat("much longer article text ", 20) + `</article>
	</body></html>`)

	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", html)
	require.NoError(t, err)
	assert.Contains(t, page.BodyText, "longer article text")
	assert.NotContains(t, page.BodyText, "short main")
}

func TestExtract_FallsBackToBody(t *testing.T) {
	html := []byte(`<html><body><p>plain body paragraph with enough words to clear the minimum content gate easily</p></body></html>`)

	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", html)
	require.NoError(t, err)
	assert.Contains(t, page.BodyText, "plain body paragraph")
}

func TestExtract_RejectsThinContent(t *testing.T) {
	html := []byte(`<html><body><p>too short</p></body></html>`)

	e := NewExtractor(20)
	_, err := e.Extract("https://acme.test/", html)
	assert.ErrorIs(t, err, kb.ErrContentTooThin)
}

func TestExtract_WordCountMeetsThreshold(t *testing.T) {
	e := NewExtractor(10)
	page, err := e.Extract("https://acme.test/", sampleHTML)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, page.WordCount, 10)
	assert.Equal(t, page.WordCount, len(strings.Fields(page.BodyText)))
}

func TestExtract_HeadingOutline(t *testing.T) {
	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", sampleHTML)
	require.NoError(t, err)

	require.Len(t, page.Headings, 2)
	assert.Equal(t, kb.Heading{Level: 1, Text: "Welcome to Acme"}, page.Headings[0])
	assert.Equal(t, kb.Heading{Level: 2, Text: "Our widgets"}, page.Headings[1])
}

func TestExtract_NavLinksResolvedAbsolute(t *testing.T) {
	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", sampleHTML)
	require.NoError(t, err)

	require.Len(t, page.NavLinks, 2)
	assert.Equal(t, kb.NavLink{Text: "About us", Href: "https://acme.test/about"}, page.NavLinks[0])
	assert.Equal(t, kb.NavLink{Text: "Contact", Href: "https://acme.test/contact"}, page.NavLinks[1])
}

func TestExtract_NormalizesWhitespace(t *testing.T) {
	html := []byte("<html><body><main>words   spread \n\n over \t lines and more filler words to pass the gate</main></body></html>")

	e := NewExtractor(5)
	page, err := e.Extract("https://acme.test/", html)
	require.NoError(t, err)
	assert.NotContains(t, page.BodyText, "  ")
	assert.NotContains(t, page.BodyText, "\n")
}

// -- ExtractLinks --------------------------------------------------------------

func TestExtractLinks_SkipsFragmentsAndSchemes(t *testing.T) {
	html := []byte(`<html><body>
		<a href="/page">one</a>
		<a href="#section">frag</a>
		<a href="mailto:hi@acme.test">mail</a>
		<a href="tel:+1234">tel</a>
		<a href="https://acme.test/two">two</a>
	</body></html>`)

	links := ExtractLinks(html)
	assert.Equal(t, []string{"/page", "https://acme.test/two"}, links)
}

func TestExtractLinks_EmptyInput(t *testing.T) {
	assert.Empty(t, ExtractLinks(nil))
	assert.Empty(t, ExtractLinks([]byte("<html><body></body></html>")))
}
