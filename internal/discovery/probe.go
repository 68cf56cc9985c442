package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// probeTarget is one hosted-board URL scheme to test a slug against.
type probeTarget struct {
	ats domain.ATSType
	url string // fmt pattern taking the slug
}

var probeTargets = []probeTarget{
	{domain.ATSGreenhouse, "https://boards-api.greenhouse.io/v1/boards/%s/jobs"},
	{domain.ATSLever, "https://api.lever.co/v0/postings/%s?mode=json&limit=1"},
	{domain.ATSSmartRecruiters, "https://api.smartrecruiters.com/v1/companies/%s/postings?limit=1"},
	{domain.ATSAshby, "https://api.ashbyhq.com/posting-api/job-board/%s"},
	{domain.ATSRecruitee, "https://%s.recruitee.com/api/offers/"},
}

// ProbeSource tests configured slugs against the hosted-board APIs of the
// supported ATS vendors. A 200 means the board exists; the candidate domain
// keeps the board's host and slug so boards on a shared host stay distinct.
type ProbeSource struct {
	slugs   []string
	client  *http.Client
	logger  *zap.Logger
	targets []probeTarget
	delay   time.Duration
}

// NewProbeSource builds the source. targets overrides the vendor list in
// tests; nil means all supported vendors.
func NewProbeSource(slugs []string, client *http.Client, logger *zap.Logger, targets []probeTarget) *ProbeSource {
	if client == nil {
		client = newHTTPClient()
	}
	if targets == nil {
		targets = probeTargets
	}
	return &ProbeSource{slugs: slugs, client: client, logger: logger, targets: targets, delay: 200 * time.Millisecond}
}

// Name implements Source.
func (s *ProbeSource) Name() string { return "ats-probe" }

// Discover implements Source.
func (s *ProbeSource) Discover(ctx context.Context) ([]domain.DiscoveredCompany, error) {
	var out []domain.DiscoveredCompany
	for _, slug := range s.slugs {
		for _, target := range s.targets {
			boardURL := fmt.Sprintf(target.url, slug)
			ok, err := s.exists(ctx, boardURL)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				s.logger.Debug("probe failed",
					zap.String("slug", slug),
					zap.String("ats", string(target.ats)),
					zap.Error(err))
				continue
			}
			if ok {
				out = append(out, domain.DiscoveredCompany{
					Name:       nameFromDomain(slug + ".example"),
					Domain:     NormalizeDomain(boardURL),
					Source:     s.Name(),
					Confidence: 0.9,
				})
				break
			}
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return out, nil
}

func (s *ProbeSource) exists(ctx context.Context, boardURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, boardURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode == http.StatusOK, nil
}
