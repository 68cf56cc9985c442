package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// SearchSource runs configured queries ("site:boards.greenhouse.io fintech",
// "careers page berlin startup") through a web search endpoint and keeps the
// result domains. The weakest source in the set, so its candidates carry the
// lowest confidence.
type SearchSource struct {
	queries []string
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	delay   time.Duration
}

// NewSearchSource builds the source. baseURL overrides the endpoint in
// tests; empty means the DuckDuckGo HTML endpoint.
func NewSearchSource(queries []string, client *http.Client, logger *zap.Logger, baseURL string) *SearchSource {
	if client == nil {
		client = newHTTPClient()
	}
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	return &SearchSource{queries: queries, client: client, logger: logger, baseURL: baseURL, delay: time.Second}
}

// Name implements Source.
func (s *SearchSource) Name() string { return "search" }

// Discover implements Source.
func (s *SearchSource) Discover(ctx context.Context) ([]domain.DiscoveredCompany, error) {
	seen := map[string]bool{}
	var out []domain.DiscoveredCompany
	for i, query := range s.queries {
		if i > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(s.delay):
			}
		}
		found, err := s.search(ctx, query)
		if err != nil {
			s.logger.Warn("search query failed", zap.String("query", query), zap.Error(err))
			continue
		}
		for _, c := range found {
			if seen[c.Domain] {
				continue
			}
			seen[c.Domain] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *SearchSource) search(ctx context.Context, query string) ([]domain.DiscoveredCompany, error) {
	endpoint := fmt.Sprintf("%s?q=%s", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new search request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: status %d", query, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read search body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var out []domain.DiscoveredCompany
	doc.Find("a.result__a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		target := resolveRedirect(href)
		dom := NormalizeDomain(target)
		if dom == "" || skippableHost(dom) {
			return
		}
		name := strings.TrimSpace(a.Text())
		if name == "" {
			name = nameFromDomain(dom)
		}
		out = append(out, domain.DiscoveredCompany{
			Name:       name,
			Domain:     dom,
			Source:     s.Name(),
			Confidence: 0.3,
		})
	})
	return out, nil
}

// resolveRedirect unwraps the uddg redirect parameter search results carry.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
