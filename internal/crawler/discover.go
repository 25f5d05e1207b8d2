package crawler

import (
	"bufio"
	"context"
	"encoding/xml"
	"log/slog"
	"net/url"
	"strings"
)

// Cap on total sitemap document fetches across nested sitemap indexes,
// to bound cycles and index explosion.
const maxSitemapFetches = 50

type sitemapDoc struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type urlsetDoc struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// DiscoverURLs tries the site's published sitemaps, then robots.txt
// Sitemap directives. Every per-source failure is swallowed and the
// next candidate tried; an empty result means callers should fall back
// to breadth-first crawling. The second return reports whether any
// sitemap yielded URLs.
func (c *Crawler) DiscoverURLs(ctx context.Context, rootURL string) ([]string, bool) {
	root := strings.TrimRight(rootURL, "/")
	candidates := []string{
		root + "/sitemap.xml",
		root + "/sitemap_index.xml",
		root + "/sitemaps.xml",
	}

	budget := maxSitemapFetches
	for _, candidate := range candidates {
		urls := c.parseSitemap(ctx, candidate, &budget)
		if len(urls) > 0 {
			slog.Info("sitemap found", "url", candidate, "count", len(urls))
			return urls, true
		}
	}

	urls := c.parseRobots(ctx, root+"/robots.txt", &budget)
	if len(urls) > 0 {
		slog.Info("sitemap found via robots.txt", "count", len(urls))
		return urls, true
	}
	return nil, false
}

// parseSitemap fetches one sitemap document, recursing into
// <sitemap><loc> index entries while the fetch budget lasts and
// collecting scheme-validated <url><loc> entries.
func (c *Crawler) parseSitemap(ctx context.Context, sitemapURL string, budget *int) []string {
	if *budget <= 0 {
		return nil
	}
	*budget--

	body, err := c.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		slog.Debug("sitemap fetch failed", "url", sitemapURL, "err", err)
		return nil
	}

	var urls []string

	var index sitemapDoc
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			urls = append(urls, c.parseSitemap(ctx, loc, budget)...)
		}
		return urls
	}

	var set urlsetDoc
	if err := xml.Unmarshal(body, &set); err != nil {
		slog.Debug("sitemap parse failed", "url", sitemapURL, "err", err)
		return nil
	}
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if isValidURL(loc) {
			urls = append(urls, loc)
		}
	}
	return urls
}

// parseRobots scans robots.txt for Sitemap: directives and resolves
// each through the sitemap parser.
func (c *Crawler) parseRobots(ctx context.Context, robotsURL string, budget *int) []string {
	body, err := c.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		return nil
	}

	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			continue
		}
		loc := strings.TrimSpace(line[len("sitemap:"):])
		if loc == "" {
			continue
		}
		urls = append(urls, c.parseSitemap(ctx, loc, budget)...)
	}
	return urls
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
