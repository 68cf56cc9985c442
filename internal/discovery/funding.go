package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// rssFeed covers the RSS 2.0 subset funding feeds publish.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

// fundingTitlePattern pulls the company name out of headlines like
// "Acme raises $12M Series A" or "Acme secures funding".
var fundingTitlePattern = regexp.MustCompile(`(?i)^(.{2,60}?)\s+(?:raises|raised|secures|lands|closes|announces|nets)\b`)

// FundingFeedSource reads funding-announcement RSS feeds. Freshly funded
// companies hire soon after, which makes the feeds a high-signal surface
// even though name extraction from headlines is lossy.
type FundingFeedSource struct {
	feeds  []string
	client *http.Client
	logger *zap.Logger
}

// NewFundingFeedSource builds the source.
func NewFundingFeedSource(feeds []string, client *http.Client, logger *zap.Logger) *FundingFeedSource {
	if client == nil {
		client = newHTTPClient()
	}
	return &FundingFeedSource{feeds: feeds, client: client, logger: logger}
}

// Name implements Source.
func (s *FundingFeedSource) Name() string { return "funding-feed" }

// Discover implements Source.
func (s *FundingFeedSource) Discover(ctx context.Context) ([]domain.DiscoveredCompany, error) {
	var all []domain.DiscoveredCompany
	var firstErr error
	for _, feedURL := range s.feeds {
		found, err := s.readFeed(ctx, feedURL)
		if err != nil {
			s.logger.Warn("funding feed failed", zap.String("url", feedURL), zap.Error(err))
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

func (s *FundingFeedSource) readFeed(ctx context.Context, feedURL string) ([]domain.DiscoveredCompany, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new feed request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d", feedURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", feedURL, err)
	}

	var out []domain.DiscoveredCompany
	for _, item := range feed.Channel.Items {
		m := fundingTitlePattern.FindStringSubmatch(strings.TrimSpace(item.Title))
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		// Item links point at the publisher, so the company domain is a
		// guess here. Queue validation drops unreachable ones.
		dom := guessDomain(name)
		if name == "" || dom == "" {
			continue
		}
		out = append(out, domain.DiscoveredCompany{
			Name:       name,
			Domain:     dom,
			Source:     s.Name(),
			Confidence: 0.4,
		})
	}
	return out, nil
}

// guessDomain slugifies a company name into a .com domain.
func guessDomain(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + ".com"
}
