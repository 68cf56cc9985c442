package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// jobHrefPattern matches link paths that conventionally point at a single
// posting on self-hosted careers pages.
var jobHrefPattern = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?|vacanc(?:y|ies))/[^/]+`)

// jsonLDPosting is the schema.org JobPosting subset we read.
type jsonLDPosting struct {
	Type        string `json:"@type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	DatePosted  string `json:"datePosted"`
	Description string `json:"description"`
	JobLocation struct {
		Address struct {
			Locality string `json:"addressLocality"`
			Region   string `json:"addressRegion"`
			Country  string `json:"addressCountry"`
		} `json:"address"`
	} `json:"jobLocation"`
	EmploymentType  string `json:"employmentType"`
	JobLocationType string `json:"jobLocationType"`
}

// Generic is the HTML-heuristic extractor used when no ATS-specific parser
// applies or when the concrete parser came up empty. It prefers schema.org
// JobPosting JSON-LD blocks, then falls back to job-looking anchors.
type Generic struct {
	logger *zap.Logger
}

// NewGeneric builds the extractor.
func NewGeneric(logger *zap.Logger) *Generic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generic{logger: logger}
}

// Type implements Extractor.
func (g *Generic) Type() domain.ATSType { return domain.ATSUnknown }

// Extract scrapes generically structured career pages.
func (g *Generic) Extract(_ context.Context, req Request) ([]domain.ExtractedJob, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Content))
	if err != nil {
		return nil, fmt.Errorf("parse generic html: %w", err)
	}

	if jobs := g.fromJSONLD(doc); len(jobs) > 0 {
		return jobs, nil
	}
	return g.fromAnchors(doc, req.SourceURL), nil
}

func (g *Generic) fromJSONLD(doc *goquery.Document) []domain.ExtractedJob {
	var jobs []domain.ExtractedJob
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := []byte(s.Text())
		var single jsonLDPosting
		var many []jsonLDPosting
		switch {
		case json.Unmarshal(raw, &single) == nil && single.Type == "JobPosting":
			many = []jsonLDPosting{single}
		case json.Unmarshal(raw, &many) == nil:
		default:
			return
		}
		for _, p := range many {
			if p.Type != "JobPosting" {
				continue
			}
			title := cleanText(p.Title)
			if title == "" {
				g.logger.Debug("skipping json-ld posting without title", zap.String("url", p.URL))
				continue
			}
			locParts := []string{}
			for _, part := range []string{p.JobLocation.Address.Locality, p.JobLocation.Address.Region, p.JobLocation.Address.Country} {
				if c := cleanText(part); c != "" {
					locParts = append(locParts, c)
				}
			}
			location := strings.Join(locParts, ", ")
			jobs = append(jobs, domain.ExtractedJob{
				Title:          title,
				SourceURL:      p.URL,
				Location:       location,
				EmploymentType: cleanText(p.EmploymentType),
				PostedAt:       parseTimestamp(p.DatePosted),
				Description:    p.Description,
				Remote:         strings.EqualFold(p.JobLocationType, "TELECOMMUTE") || isRemote(location, title),
			})
		}
	})
	return jobs
}

func (g *Generic) fromAnchors(doc *goquery.Document, sourceURL string) []domain.ExtractedJob {
	seen := map[string]bool{}
	var jobs []domain.ExtractedJob
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs := absoluteURL(sourceURL, href)
		if abs == "" || !jobHrefPattern.MatchString(abs) {
			return
		}
		if seen[abs] {
			return
		}
		title := cleanText(a.Text())
		if title == "" || looksLikeJunkTitle(title) || len(title) > 120 {
			return
		}
		seen[abs] = true
		jobs = append(jobs, domain.ExtractedJob{
			Title:     title,
			SourceURL: abs,
			Remote:    isRemote(title),
		})
	})
	return jobs
}
