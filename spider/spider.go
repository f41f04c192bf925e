// Package spider discovers capture paths by crawling the base domain.
package spider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrInvalidBase is returned when the crawl root is not an absolute URL.
var ErrInvalidBase = errors.New("spider base must be an absolute http(s) URL")

const maxBodyBytes = 10 << 20

// skippedExtensions are never crawled: they are not pages.
var skippedExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".svg": true, ".ico": true, ".css": true, ".js": true, ".json": true,
	".xml": true, ".zip": true, ".gz": true, ".mp4": true, ".mp3": true,
	".woff": true, ".woff2": true, ".txt": true, ".doc": true, ".docx": true,
}

// Options tunes a Spider.
type Options struct {
	// Concurrency is the number of pages fetched in parallel.
	Concurrency int
	// RequestsPerSecond caps the request rate; zero means unlimited.
	RequestsPerSecond float64
	// MaxPages stops the crawl once this many paths are known.
	MaxPages int
	// Client is the HTTP client used for fetching. Defaults to a client with a 30s timeout.
	Client *http.Client
}

// Spider crawls a site breadth first and returns the paths it found.
type Spider struct {
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
	maxPages    int
	logger      logger.Logger
}

// New creates a Spider.
func New(opts Options, log logger.Logger) *Spider {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 500
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Spider{
		client:      opts.Client,
		limiter:     rate.NewLimiter(limit, opts.Concurrency),
		concurrency: opts.Concurrency,
		maxPages:    opts.MaxPages,
		logger:      log.WithField("component", "spider"),
	}
}

// Crawl walks every same-host page reachable from base and returns the
// sorted unique paths. URLs matched by skips are neither recorded nor
// followed. A page that fails to load is logged and skipped.
func (s *Spider) Crawl(ctx context.Context, base string, skips config.Skips) ([]string, error) {
	root, err := url.Parse(base)
	if err != nil || root.Host == "" || (root.Scheme != "http" && root.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBase, base)
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	start := normalizePath(root.Path)
	seen[start] = true
	frontier := []string{start}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []string
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)

		for _, p := range frontier {
			p := p
			g.Go(func() error {
				links, err := s.fetchLinks(gctx, root, p)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					s.logger.Warn(gctx, "failed to crawl page", map[string]interface{}{
						"path":  p,
						"error": err.Error(),
					})
					return nil
				}

				mu.Lock()
				defer mu.Unlock()
				for _, link := range links {
					candidate, ok := s.accept(root, link, skips)
					if !ok || seen[candidate] || len(seen) >= s.maxPages {
						continue
					}
					seen[candidate] = true
					next = append(next, candidate)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		sort.Strings(next)
		frontier = next
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	s.logger.Info(ctx, "crawl finished", map[string]interface{}{
		"base":  base,
		"paths": len(paths),
	})
	return paths, nil
}

func (s *Spider) fetchLinks(ctx context.Context, root *url.URL, p string) ([]*url.URL, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageURL := root.ResolveReference(&url.URL{Path: p})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return nil, nil
	}

	hrefs := extractLinks(io.LimitReader(resp.Body, maxBodyBytes))
	// Redirects change the base relative links resolve against.
	pageBase := resp.Request.URL
	links := make([]*url.URL, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		links = append(links, pageBase.ResolveReference(ref))
	}
	return links, nil
}

func (s *Spider) accept(root, link *url.URL, skips config.Skips) (string, bool) {
	if link.Scheme != "http" && link.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(link.Hostname(), root.Hostname()) {
		return "", false
	}
	if skippedExtensions[strings.ToLower(path.Ext(link.Path))] {
		return "", false
	}
	clean := *link
	clean.RawQuery = ""
	clean.Fragment = ""
	if skips.Match(clean.String()) {
		return "", false
	}
	return normalizePath(link.Path), true
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// extractLinks returns the href of every <a> element in the document.
func extractLinks(r io.Reader) []string {
	var hrefs []string
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return hrefs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}
