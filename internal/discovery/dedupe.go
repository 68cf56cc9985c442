package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/openhire/jobradar/internal/store"
)

// Classification is the dedup verdict for one candidate.
type Classification int

// Dedup verdicts.
const (
	ClassNew Classification = iota
	ClassDuplicateInRun
	ClassDuplicatePersisted
)

// atsBoardHosts are shared hosting domains where the first path segment,
// not the host, identifies the company.
var atsBoardHosts = map[string]bool{
	"boards.greenhouse.io":     true,
	"boards-api.greenhouse.io": true,
	"job-boards.greenhouse.io": true,
	"jobs.lever.co":            true,
	"api.lever.co":             true,
	"jobs.smartrecruiters.com": true,
	"api.smartrecruiters.com":  true,
	"careers.smartrecruiters.com": true,
	"jobs.ashbyhq.com":         true,
	"api.ashbyhq.com":          true,
}

// NormalizeDomain reduces a raw domain or URL to its canonical comparison
// form: lowercased host with scheme, leading www, port, and path stripped.
// Shared ATS board hosts keep their first path segment so distinct boards
// do not collapse into one domain.
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		// Not URL-shaped; fall back to plain string cleanup.
		host := strings.ToLower(strings.TrimSpace(raw))
		host = strings.TrimPrefix(host, "https://")
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "www.")
		if i := strings.IndexAny(host, "/:?#"); i >= 0 {
			host = host[:i]
		}
		return host
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if atsBoardHosts[host] {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		slug := segs[0]
		// API paths prefix the slug with version and resource segments.
		for i, seg := range segs {
			if (seg == "boards" || seg == "postings" || seg == "job-board" || seg == "companies") && i+1 < len(segs) {
				slug = segs[i+1]
				break
			}
		}
		if slug != "" && slug != "v0" && slug != "v1" {
			return host + "/" + slug
		}
	}
	return host
}

// Deduper classifies candidates against the companies already persisted and
// against earlier candidates of the same run. Not safe for concurrent use;
// the orchestrator feeds it serially.
type Deduper struct {
	persisted map[string]bool
	inRun     map[string]bool
}

// NewDeduper snapshots the persisted domain index once per run.
func NewDeduper(ctx context.Context, companies store.CompanyRepository) (*Deduper, error) {
	known, err := companies.KnownDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load known domains: %w", err)
	}
	persisted := make(map[string]bool, len(known))
	for dom := range known {
		persisted[NormalizeDomain(dom)] = true
	}
	return &Deduper{persisted: persisted, inRun: map[string]bool{}}, nil
}

// Classify returns the candidate's verdict and its normalized domain. New
// candidates are recorded so later duplicates within the run are caught.
func (d *Deduper) Classify(rawDomain string) (Classification, string) {
	dom := NormalizeDomain(rawDomain)
	if dom == "" {
		return ClassDuplicateInRun, ""
	}
	if d.persisted[dom] {
		return ClassDuplicatePersisted, dom
	}
	if d.inRun[dom] {
		return ClassDuplicateInRun, dom
	}
	d.inRun[dom] = true
	return ClassNew, dom
}
