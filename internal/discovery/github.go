package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// githubOrg is the subset of the orgs API we read.
type githubOrg struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Blog  string `json:"blog"`
}

// GitHubSource resolves configured GitHub organizations to their company
// websites via the public orgs API. Unauthenticated requests are rate
// limited upstream, so org lists should stay small.
type GitHubSource struct {
	orgs    []string
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

// NewGitHubSource builds the source. baseURL overrides the API host in
// tests; empty means api.github.com.
func NewGitHubSource(orgs []string, client *http.Client, logger *zap.Logger, baseURL string) *GitHubSource {
	if client == nil {
		client = newHTTPClient()
	}
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubSource{orgs: orgs, client: client, logger: logger, baseURL: baseURL}
}

// Name implements Source.
func (s *GitHubSource) Name() string { return "github-org" }

// Discover implements Source.
func (s *GitHubSource) Discover(ctx context.Context) ([]domain.DiscoveredCompany, error) {
	var out []domain.DiscoveredCompany
	for _, org := range s.orgs {
		company, err := s.lookup(ctx, org)
		if err != nil {
			s.logger.Warn("github org lookup failed", zap.String("org", org), zap.Error(err))
			continue
		}
		if company.Domain == "" {
			s.logger.Debug("github org has no website", zap.String("org", org))
			continue
		}
		out = append(out, company)
	}
	return out, nil
}

func (s *GitHubSource) lookup(ctx context.Context, org string) (domain.DiscoveredCompany, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/orgs/%s", s.baseURL, org), nil)
	if err != nil {
		return domain.DiscoveredCompany{}, fmt.Errorf("new org request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.DiscoveredCompany{}, fmt.Errorf("fetch org %s: %w", org, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return domain.DiscoveredCompany{}, fmt.Errorf("fetch org %s: status %d", org, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.DiscoveredCompany{}, fmt.Errorf("read org body: %w", err)
	}
	var parsed githubOrg
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.DiscoveredCompany{}, fmt.Errorf("decode org body: %w", err)
	}
	name := parsed.Name
	if name == "" {
		name = parsed.Login
	}
	return domain.DiscoveredCompany{
		Name:       name,
		Domain:     NormalizeDomain(parsed.Blog),
		Source:     s.Name(),
		Confidence: 0.9,
	}, nil
}
