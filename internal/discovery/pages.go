package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// skipHosts are link targets that never identify an employer's own site.
var skipHosts = []string{
	"twitter.com", "x.com", "linkedin.com", "facebook.com", "instagram.com",
	"youtube.com", "github.com", "medium.com", "crunchbase.com",
	"google.com", "apple.com", "play.google.com",
}

func skippableHost(host string) bool {
	for _, s := range skipHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// scrapeExternalLinks fetches a listing page and returns one candidate per
// external link whose anchor text plausibly names a company.
func scrapeExternalLinks(ctx context.Context, client *http.Client, pageURL, source string, confidence float64, logger *zap.Logger) ([]domain.DiscoveredCompany, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new listing request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read listing body: %w", err)
	}

	pageHost := ""
	if u, err := url.Parse(pageURL); err == nil {
		pageHost = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", pageURL, err)
	}

	seen := map[string]bool{}
	var out []domain.DiscoveredCompany
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Hostname() == "" {
			return
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == "" || host == pageHost || skippableHost(host) {
			return
		}
		name := strings.TrimSpace(a.Text())
		if name == "" || len(name) > 80 {
			return
		}
		if seen[host] {
			return
		}
		seen[host] = true
		out = append(out, domain.DiscoveredCompany{
			Name:       name,
			Domain:     host,
			Source:     source,
			Confidence: confidence,
		})
	})
	logger.Debug("listing page scraped",
		zap.String("source", source),
		zap.String("url", pageURL),
		zap.Int("candidates", len(out)))
	return out, nil
}

// listingSource covers the three curated-page sources, which differ only in
// their page sets, source labels, and confidence.
type listingSource struct {
	name       string
	urls       []string
	confidence float64
	client     *http.Client
	logger     *zap.Logger
}

func (s *listingSource) Name() string { return s.name }

func (s *listingSource) Discover(ctx context.Context) ([]domain.DiscoveredCompany, error) {
	var all []domain.DiscoveredCompany
	var firstErr error
	for _, pageURL := range s.urls {
		found, err := scrapeExternalLinks(ctx, s.client, pageURL, s.name, s.confidence, s.logger)
		if err != nil {
			s.logger.Warn("listing page failed",
				zap.String("source", s.name),
				zap.String("url", pageURL),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		all = append(all, found...)
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// NewDirectorySource scrapes curated ATS customer directories.
func NewDirectorySource(urls []string, client *http.Client, logger *zap.Logger) Source {
	if client == nil {
		client = newHTTPClient()
	}
	return &listingSource{name: "ats-directory", urls: urls, confidence: 0.7, client: client, logger: logger}
}

// NewAcceleratorSource scrapes accelerator and incubator portfolio pages.
func NewAcceleratorSource(urls []string, client *http.Client, logger *zap.Logger) Source {
	if client == nil {
		client = newHTTPClient()
	}
	return &listingSource{name: "accelerator", urls: urls, confidence: 0.8, client: client, logger: logger}
}

// NewAggregatorSource scrapes job-aggregator company listings. Aggregators
// churn and embed tracking redirects, so confidence sits lower.
func NewAggregatorSource(urls []string, client *http.Client, logger *zap.Logger) Source {
	if client == nil {
		client = newHTTPClient()
	}
	return &listingSource{name: "aggregator", urls: urls, confidence: 0.6, client: client, logger: logger}
}
