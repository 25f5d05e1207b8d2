package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrawler(minWords int) *Crawler {
	return New(NewFetcher("TestBot/1.0", 5*time.Second), NewExtractor(minWords), 1000)
}

// -- DiscoverURLs --------------------------------------------------------------

func TestDiscover_FindsSitemapXML(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/</loc></url>
  <url><loc>%s/about</loc></url>
  <url><loc>ftp://bad.example/ignored</loc></url>
</urlset>`, srv.URL, srv.URL)
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	urls, found := c.DiscoverURLs(context.Background(), srv.URL)
	assert.True(t, found)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/about"}, urls)
}

func TestDiscover_RecursesSitemapIndex(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/sub1.xml</loc></sitemap><sitemap><loc>%s/sub2.xml</loc></sitemap></sitemapindex>`, srv.URL, srv.URL)
		case "/sub1.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/a</loc></url></urlset>`, srv.URL)
		case "/sub2.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/b</loc></url></urlset>`, srv.URL)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	urls, found := c.DiscoverURLs(context.Background(), srv.URL)
	assert.True(t, found)
	assert.ElementsMatch(t, []string{srv.URL + "/a", srv.URL + "/b"}, urls)
}

func TestDiscover_BoundsNestedSitemapFetches(t *testing.T) {
	fetches := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		// Every document points back at itself: a sitemap cycle.
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/sitemap.xml</loc></sitemap></sitemapindex>`, srv.URL)
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	_, _ = c.DiscoverURLs(context.Background(), srv.URL)
	assert.LessOrEqual(t, fetches, maxSitemapFetches+3)
}

func TestDiscover_FallsBackToRobotsTxt(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprintf(w, "User-agent: *\nDisallow: /admin\nSitemap: %s/custom.xml\n", srv.URL)
		case "/custom.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/from-robots</loc></url></urlset>`, srv.URL)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	urls, found := c.DiscoverURLs(context.Background(), srv.URL)
	assert.True(t, found)
	assert.Equal(t, []string{srv.URL + "/from-robots"}, urls)
}

func TestDiscover_NoSitemapReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	urls, found := c.DiscoverURLs(context.Background(), srv.URL)
	assert.False(t, found)
	assert.Empty(t, urls)
}

func TestDiscover_MalformedSitemapSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			w.Write([]byte("this is not xml at all"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCrawler(5)
	urls, found := c.DiscoverURLs(context.Background(), srv.URL)
	assert.False(t, found)
	require.Empty(t, urls)
}
