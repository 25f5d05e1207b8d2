package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitechat/engine/internal/kb"
)

// Default substring filters applied to discovered links.
var DefaultExcludePatterns = []string{
	"/admin", "/login", "/api", ".pdf", ".jpg", ".png", ".gif", ".css", ".js",
}

// Options bound one crawl run.
type Options struct {
	MaxPages          int
	IncludeSubdomains bool
	ExcludePatterns   []string
}

// Result is the outcome of one crawl: the accepted page corpus plus a
// per-URL error log.
type Result struct {
	Pages        []kb.Page
	Errors       []kb.CrawlError
	SitemapFound bool
}

// Crawler drives URL discovery and page extraction under a page budget,
// domain policy and politeness delay. Fetches are sequential behind a
// rate limiter to bound load on the target site.
type Crawler struct {
	fetcher   *Fetcher
	extractor *Extractor
	limiter   *rate.Limiter
}

func New(fetcher *Fetcher, extractor *Extractor, fetchesPerSec float64) *Crawler {
	if fetchesPerSec <= 0 {
		fetchesPerSec = 1.0
	}
	return &Crawler{
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   rate.NewLimiter(rate.Limit(fetchesPerSec), 1),
	}
}

// Crawl produces the page corpus for rootURL. Individual page failures
// are recorded and never fatal; kb.ErrNoContentExtracted is returned
// only when the whole crawl yields zero usable pages.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, opts Options) (Result, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 20
	}
	if opts.ExcludePatterns == nil {
		opts.ExcludePatterns = DefaultExcludePatterns
	}

	result := Result{}

	workSet, sitemapFound := c.DiscoverURLs(ctx, rootURL)
	result.SitemapFound = sitemapFound
	if sitemapFound {
		workSet = dedupeURLs(workSet)
	} else {
		slog.Info("no sitemap found, crawling website", "root", rootURL)
		workSet = c.discoverByCrawling(ctx, rootURL, opts)
	}
	if len(workSet) > opts.MaxPages {
		workSet = workSet[:opts.MaxPages]
	}

	slog.Info("processing urls", "count", len(workSet), "sitemap", sitemapFound)

	for _, pageURL := range workSet {
		if err := c.limiter.Wait(ctx); err != nil {
			return result, err
		}

		page, err := c.scrapePage(ctx, pageURL)
		if err != nil {
			slog.Warn("page failed", "url", pageURL, "err", err)
			result.Errors = append(result.Errors, kb.CrawlError{
				URL:       pageURL,
				Message:   err.Error(),
				Timestamp: time.Now().UTC(),
			})
			continue
		}
		result.Pages = append(result.Pages, page)
	}

	if len(result.Pages) == 0 {
		return result, kb.ErrNoContentExtracted
	}

	slog.Info("crawl completed", "pages", len(result.Pages), "errors", len(result.Errors))
	return result, nil
}

func (c *Crawler) scrapePage(ctx context.Context, pageURL string) (kb.Page, error) {
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return kb.Page{}, err
	}
	return c.extractor.Extract(pageURL, body)
}

// discoverByCrawling performs breadth-first link discovery from
// rootURL: a FIFO frontier, a discovered set bounding the result at
// MaxPages, and a processed set preventing revisits.
func (c *Crawler) discoverByCrawling(ctx context.Context, rootURL string, opts Options) []string {
	base, err := url.Parse(rootURL)
	if err != nil {
		return nil
	}
	// Exact-host policy includes the port; the subdomain policy works
	// on hostnames only.
	baseHost := base.Host

	start := normalizeURL(base)
	discovered := map[string]bool{start: true}
	order := []string{start}
	frontier := []string{start}
	processed := map[string]bool{}

	for len(frontier) > 0 && len(discovered) < opts.MaxPages {
		current := frontier[0]
		frontier = frontier[1:]

		if processed[current] {
			continue
		}
		processed[current] = true

		if err := c.limiter.Wait(ctx); err != nil {
			break
		}

		body, err := c.fetcher.Fetch(ctx, current)
		if err != nil {
			slog.Debug("discovery fetch failed", "url", current, "err", err)
			continue
		}

		for _, link := range ExtractLinks(body) {
			ref, err := url.Parse(link)
			if err != nil {
				continue
			}
			abs := base.ResolveReference(ref)
			if abs.Scheme != "http" && abs.Scheme != "https" {
				continue
			}
			if !sameDomain(abs.Host, baseHost, opts.IncludeSubdomains) {
				continue
			}
			if matchesAny(link, opts.ExcludePatterns) || matchesAny(abs.Path, opts.ExcludePatterns) {
				continue
			}

			normalized := normalizeURL(abs)
			if !discovered[normalized] && len(discovered) < opts.MaxPages {
				discovered[normalized] = true
				order = append(order, normalized)
				frontier = append(frontier, normalized)
			}
		}
	}

	return order
}

// dedupeURLs normalizes sitemap-discovered URLs and drops duplicates,
// preserving first-seen order. Sitemaps routinely repeat entries; each
// page is fetched once regardless of how it was discovered.
func dedupeURLs(raw []string) []string {
	seen := map[string]bool{}
	var urls []string
	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil {
			continue
		}
		normalized := normalizeURL(u)
		if !seen[normalized] {
			seen[normalized] = true
			urls = append(urls, normalized)
		}
	}
	return urls
}

// normalizeURL strips fragment and query, keeping scheme://host/path.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawQuery = ""
	if n.Path == "" {
		n.Path = "/"
	}
	return n.Scheme + "://" + n.Host + n.Path
}

// sameDomain applies the crawl's domain policy: exact host match, or
// the same registrable base domain when subdomains are included.
func sameDomain(host, baseHost string, includeSubdomains bool) bool {
	if host == baseHost {
		return true
	}
	if !includeSubdomains {
		return false
	}
	base := registrableDomain(stripPort(baseHost))
	host = stripPort(host)
	return host == base || strings.HasSuffix(host, "."+base)
}

// registrableDomain keeps the last two labels of a hostname.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 {
		return host[:i]
	}
	return host
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
