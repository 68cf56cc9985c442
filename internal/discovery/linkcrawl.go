package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// hiringMarkers are href or anchor-text fragments that suggest the linked
// site hires.
var hiringMarkers = []string{"career", "jobs", "join-us", "join us", "we're hiring", "hiring", "work with us", "open roles"}

// LinkCrawlSource follows links out from seed pages (newsletters, "who is
// hiring" roundups, tech-scene indexes) and keeps external sites whose
// links look hiring-related.
type LinkCrawlSource struct {
	seeds     []string
	maxDepth  int
	userAgent string
	logger    *zap.Logger
}

// NewLinkCrawlSource builds the source.
func NewLinkCrawlSource(seeds []string, maxDepth int, userAgent string, logger *zap.Logger) *LinkCrawlSource {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	return &LinkCrawlSource{seeds: seeds, maxDepth: maxDepth, userAgent: userAgent, logger: logger}
}

// Name implements Source.
func (s *LinkCrawlSource) Name() string { return "link-crawl" }

// Discover implements Source.
func (s *LinkCrawlSource) Discover(ctx context.Context) ([]domain.DiscoveredCompany, error) {
	collector := colly.NewCollector(
		colly.MaxDepth(s.maxDepth),
		colly.UserAgent(s.userAgent),
		colly.Async(true),
	)
	collector.AllowURLRevisit = false
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       500 * time.Millisecond,
	}); err != nil {
		return nil, err
	}
	collector.Context = ctx

	var mu sync.Mutex
	seen := map[string]bool{}
	var out []domain.DiscoveredCompany

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if href == "" {
			return
		}
		text := strings.ToLower(strings.TrimSpace(e.Text))
		lowered := strings.ToLower(href)
		hiring := false
		for _, marker := range hiringMarkers {
			if strings.Contains(lowered, marker) || strings.Contains(text, marker) {
				hiring = true
				break
			}
		}
		if hiring {
			dom := NormalizeDomain(href)
			if dom != "" && !skippableHost(dom) {
				mu.Lock()
				if !seen[dom] {
					seen[dom] = true
					out = append(out, domain.DiscoveredCompany{
						Name:       nameFromDomain(dom),
						Domain:     dom,
						Source:     s.Name(),
						Confidence: 0.5,
					})
				}
				mu.Unlock()
			}
			return
		}
		// Keep walking within depth.
		if err := e.Request.Visit(e.Attr("href")); err != nil {
			s.logger.Debug("link visit skipped", zap.String("url", href), zap.Error(err))
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		s.logger.Debug("link crawl error", zap.String("url", r.Request.URL.String()), zap.Error(err))
	})

	for _, seed := range s.seeds {
		if err := collector.Visit(seed); err != nil {
			s.logger.Warn("seed visit failed", zap.String("url", seed), zap.Error(err))
		}
	}
	collector.Wait()
	return out, nil
}

// nameFromDomain derives a display name when a source only sees a domain.
func nameFromDomain(dom string) string {
	base := dom
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.ReplaceAll(base, "-", " ")
	if base == "" {
		return dom
	}
	return strings.ToUpper(base[:1]) + base[1:]
}
