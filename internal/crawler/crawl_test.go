package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitechat/engine/internal/kb"
)

func pageHTML(title string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><main><p>", title)
	b.WriteString(strings.Repeat("plenty of meaningful words about the subject at hand here ", 5))
	b.WriteString("</p></main>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// -- Crawl with sitemap --------------------------------------------------------

func TestCrawl_SitemapWithThreeURLs(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/one</loc></url><url><loc>%s/two</loc></url><url><loc>%s/three</loc></url></urlset>`,
				srv.URL, srv.URL, srv.URL)
		default:
			fmt.Fprint(w, pageHTML("Page "+r.URL.Path))
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	assert.True(t, result.SitemapFound)
	assert.Len(t, result.Pages, 3)
	assert.Empty(t, result.Errors)
}

func TestCrawl_SitemapDuplicatesFetchedOnce(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()

		if r.URL.Path == "/sitemap.xml" {
			// the same page listed plainly, repeated, and with a query
			fmt.Fprintf(w, `<urlset><url><loc>%s/one</loc></url><url><loc>%s/one</loc></url><url><loc>%s/one?ref=sitemap</loc></url><url><loc>%s/two</loc></url></urlset>`,
				srv.URL, srv.URL, srv.URL, srv.URL)
			return
		}
		fmt.Fprint(w, pageHTML("Page "+r.URL.Path))
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	assert.True(t, result.SitemapFound)
	assert.Len(t, result.Pages, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["/one"])
	assert.Equal(t, 1, hits["/two"])
}

func TestCrawl_SitemapCappedAtMaxPages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			fmt.Fprint(w, "<urlset>")
			for i := 0; i < 10; i++ {
				fmt.Fprintf(w, "<url><loc>%s/p%d</loc></url>", srv.URL, i)
			}
			fmt.Fprint(w, "</urlset>")
			return
		}
		fmt.Fprint(w, pageHTML("Page"))
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 4})
	require.NoError(t, err)
	assert.Len(t, result.Pages, 4)
}

// -- Breadth-first crawl -------------------------------------------------------

func TestCrawl_BFSDiscoversLinkedPages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml", "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case "/":
			fmt.Fprint(w, pageHTML("Home", "/about", "/products"))
		case "/about":
			fmt.Fprint(w, pageHTML("About", "/"))
		case "/products":
			fmt.Fprint(w, pageHTML("Products", "/about", "/products"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	assert.False(t, result.SitemapFound)
	assert.Len(t, result.Pages, 3)

	urls := make([]string, len(result.Pages))
	for i, p := range result.Pages {
		urls[i] = p.URL
	}
	assert.ElementsMatch(t, []string{srv.URL + "/", srv.URL + "/about", srv.URL + "/products"}, urls)
}

func TestCrawl_BFSNeverFetchesSameURLTwice(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml", "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		default:
			// Every page links to every other page.
			fmt.Fprint(w, pageHTML("Page", "/", "/a", "/b", "/a#frag", "/b?x=1"))
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 3})
	require.NoError(t, err)
	assert.Len(t, result.Pages, 3)

	mu.Lock()
	defer mu.Unlock()
	for path, n := range hits {
		if path == "/" || path == "/a" || path == "/b" {
			// once during discovery, once during scraping
			assert.LessOrEqual(t, n, 2, "path %s fetched %d times", path, n)
		}
	}
}

func TestCrawl_ExcludePatternsFilterLinks(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml", "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case "/":
			fmt.Fprint(w, pageHTML("Home", "/admin/panel", "/style.css", "/about"))
		default:
			fmt.Fprint(w, pageHTML("Page"))
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	for _, p := range result.Pages {
		assert.NotContains(t, p.URL, "/admin")
		assert.NotContains(t, p.URL, ".css")
	}
	assert.Len(t, result.Pages, 2)
}

func TestCrawl_StaysOnDomain(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("External"))
	}))
	defer other.Close()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml", "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case "/":
			fmt.Fprint(w, pageHTML("Home", other.URL+"/elsewhere", "/local"))
		default:
			fmt.Fprint(w, pageHTML("Local"))
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	for _, p := range result.Pages {
		assert.True(t, strings.HasPrefix(p.URL, srv.URL), "offsite page %s", p.URL)
	}
}

// -- Error handling ------------------------------------------------------------

func TestCrawl_PageFailureRecordedNotFatal(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/good</loc></url><url><loc>%s/broken</loc></url><url><loc>%s/thin</loc></url></urlset>`,
				srv.URL, srv.URL, srv.URL)
		case "/good":
			fmt.Fprint(w, pageHTML("Good"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/thin":
			fmt.Fprint(w, "<html><body><p>tiny</p></body></html>")
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	assert.Len(t, result.Pages, 1)
	require.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.NotEmpty(t, e.Message)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestCrawl_NoUsablePagesIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	_, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 5})
	assert.ErrorIs(t, err, kb.ErrNoContentExtracted)
}

// -- Quality gate --------------------------------------------------------------

func TestCrawl_AllPagesMeetMinimumWordCount(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/full</loc></url><url><loc>%s/thin</loc></url></urlset>`, srv.URL, srv.URL)
		case "/full":
			fmt.Fprint(w, pageHTML("Full"))
		case "/thin":
			fmt.Fprint(w, "<html><body><p>only four words here</p></body></html>")
		}
	}))
	defer srv.Close()

	minWords := 10
	c := newTestCrawler(minWords)
	result, err := c.Crawl(context.Background(), srv.URL, Options{MaxPages: 10})
	require.NoError(t, err)

	for _, p := range result.Pages {
		assert.GreaterOrEqual(t, p.WordCount, minWords)
	}
	assert.Len(t, result.Pages, 1)
}

// -- Domain policy helpers -----------------------------------------------------

func TestSameDomain(t *testing.T) {
	cases := []struct {
		host, base string
		subdomains bool
		want       bool
	}{
		{"example.com", "example.com", false, true},
		{"blog.example.com", "example.com", false, false},
		{"blog.example.com", "example.com", true, true},
		{"example.com", "www.example.com", true, true},
		{"evil.com", "example.com", true, false},
		{"notexample.com", "example.com", true, false},
	}
	for _, tc := range cases {
		got := sameDomain(tc.host, tc.base, tc.subdomains)
		assert.Equal(t, tc.want, got, "host=%s base=%s subdomains=%v", tc.host, tc.base, tc.subdomains)
	}
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com", registrableDomain("www.example.com"))
	assert.Equal(t, "example.com", registrableDomain("a.b.example.com"))
	assert.Equal(t, "example.com", registrableDomain("example.com"))
	assert.Equal(t, "localhost", registrableDomain("localhost"))
}
