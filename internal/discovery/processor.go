package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/ats"
	"github.com/openhire/jobradar/internal/crawler"
	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

// Fetcher is the polite page fetcher the processor validates candidates
// with.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (crawler.Result, error)
}

// careersLinkMarkers order the homepage links we try as careers pages.
var careersLinkMarkers = []string{"career", "jobs", "join", "hiring", "open roles", "positions", "vacancies"}

// Processor drains the discovery queue: it checks each candidate is
// reachable, locates its careers page, detects the ATS, and promotes
// survivors to company records.
type Processor struct {
	fetcher   Fetcher
	companies store.CompanyRepository
	queue     store.DiscoveryRepository
	clock     Clock
	logger    *zap.Logger
}

// NewProcessor builds the processor.
func NewProcessor(fetcher Fetcher, companies store.CompanyRepository, queue store.DiscoveryRepository, clk Clock, logger *zap.Logger) *Processor {
	return &Processor{fetcher: fetcher, companies: companies, queue: queue, clock: clk, logger: logger}
}

// Outcome summarizes one processing pass.
type Outcome struct {
	Promoted int
	Dropped  int
}

// Process validates up to limit queued candidates. Entries are removed from
// the queue whether promoted or dropped; only infrastructure errors leave
// them queued for the next pass.
func (p *Processor) Process(ctx context.Context, limit int) (Outcome, error) {
	entries, err := p.queue.Dequeue(ctx, limit)
	if err != nil {
		return Outcome{}, fmt.Errorf("dequeue candidates: %w", err)
	}

	var outcome Outcome
	var processed []int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			break
		}
		company, reason := p.validate(ctx, entry)
		if reason != "" {
			outcome.Dropped++
			p.logger.Info("candidate dropped",
				zap.String("domain", entry.Domain),
				zap.String("source", entry.Source),
				zap.String("reason", reason))
			processed = append(processed, entry.ID)
			continue
		}
		if _, err := p.companies.Upsert(ctx, company); err != nil {
			return outcome, fmt.Errorf("promote %s: %w", entry.Domain, err)
		}
		outcome.Promoted++
		p.logger.Info("candidate promoted",
			zap.String("domain", entry.Domain),
			zap.String("ats", string(company.ATSType)))
		processed = append(processed, entry.ID)
	}

	if len(processed) > 0 {
		if err := p.queue.Remove(ctx, processed); err != nil {
			return outcome, fmt.Errorf("remove processed entries: %w", err)
		}
	}
	return outcome, nil
}

// validate turns a queue entry into a company, or returns a drop reason.
func (p *Processor) validate(ctx context.Context, entry domain.DiscoveryQueueEntry) (domain.Company, string) {
	startURL := candidateURL(entry.Domain)
	res, err := p.fetcher.Fetch(ctx, startURL)
	if err != nil || res.StatusCode != 200 {
		return domain.Company{}, fmt.Sprintf("unreachable: %s", fetchFailure(res, err))
	}

	careersURL := startURL
	body := res.Body
	// Board-path candidates already point at the careers surface.
	if !strings.Contains(entry.Domain, "/") {
		if link := findCareersLink(body, startURL); link != "" {
			if linkRes, err := p.fetcher.Fetch(ctx, link); err == nil && linkRes.StatusCode == 200 {
				careersURL = link
				body = linkRes.Body
			}
		}
	}

	atsType := ats.Detect(careersURL, body)
	now := p.clock.Now()
	return domain.Company{
		ID:         uuid.New(),
		Name:       entry.Name,
		Domain:     entry.Domain,
		CareersURL: careersURL,
		ATSType:    atsType,
		Source:     entry.Source,
		Verified:   domain.SupportedATS[atsType],
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, ""
}

// candidateURL rebuilds a fetchable URL from a normalized domain. Board
// slugs on API hosts are rewritten to their public board host.
func candidateURL(dom string) string {
	dom = strings.Replace(dom, "boards-api.greenhouse.io/", "boards.greenhouse.io/", 1)
	dom = strings.Replace(dom, "api.lever.co/", "jobs.lever.co/", 1)
	dom = strings.Replace(dom, "api.ashbyhq.com/", "jobs.ashbyhq.com/", 1)
	dom = strings.Replace(dom, "api.smartrecruiters.com/", "jobs.smartrecruiters.com/", 1)
	return "https://" + dom
}

func fetchFailure(res crawler.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("status %d", res.StatusCode)
}

// findCareersLink scans a homepage for the most careers-looking link.
func findCareersLink(body []byte, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	best := ""
	bestRank := len(careersLinkMarkers)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		blob := strings.ToLower(href + " " + a.Text())
		for rank, marker := range careersLinkMarkers {
			if rank >= bestRank {
				break
			}
			if strings.Contains(blob, marker) {
				if abs := resolveHref(baseURL, href); abs != "" {
					best = abs
					bestRank = rank
				}
				break
			}
		}
	})
	return best
}

func resolveHref(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.ResolveReference(ref).String()
}
