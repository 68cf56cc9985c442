package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// smartRecruitersPage is the public postings API envelope.
type smartRecruitersPage struct {
	Content    []smartRecruitersPosting `json:"content"`
	TotalFound int                      `json:"totalFound"`
	Offset     int                      `json:"offset"`
	Limit      int                      `json:"limit"`
}

type smartRecruitersPosting struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ReleasedDate time.Time `json:"releasedDate"`
	Ref          string    `json:"ref"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
	Department struct {
		Label string `json:"label"`
	} `json:"department"`
	TypeOfEmployment struct {
		Label string `json:"label"`
	} `json:"typeOfEmployment"`
}

// SmartRecruiters extracts postings from SmartRecruiters boards.
type SmartRecruiters struct {
	client *http.Client
	logger *zap.Logger
}

// NewSmartRecruiters builds the extractor.
func NewSmartRecruiters(client *http.Client, logger *zap.Logger) *SmartRecruiters {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartRecruiters{client: client, logger: logger}
}

// Type implements Extractor.
func (s *SmartRecruiters) Type() domain.ATSType { return domain.ATSSmartRecruiters }

// Extract applies the sniffing chain to SmartRecruiters content.
func (s *SmartRecruiters) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if looksLikeJSON(req.Content) {
		var page smartRecruitersPage
		if err := json.Unmarshal(req.Content, &page); err == nil {
			if jobs := s.convert(page.Content); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	slug := req.CompanySlug
	if slug == "" && strings.Contains(req.SourceURL, "smartrecruiters.com") {
		slug = slugFromPath(req.SourceURL)
	}
	if slug != "" {
		var all []domain.ExtractedJob
		for offset := 0; ; {
			apiURL := fmt.Sprintf("https://api.smartrecruiters.com/v1/companies/%s/postings?offset=%d", slug, offset)
			var page smartRecruitersPage
			if err := fetchJSON(ctx, s.client, apiURL, &page); err != nil {
				s.logger.Debug("smartrecruiters api fetch failed", zap.String("slug", slug), zap.Error(err))
				all = nil
				break
			}
			all = append(all, s.convert(page.Content)...)
			offset += len(page.Content)
			if len(page.Content) == 0 || offset >= page.TotalFound {
				break
			}
		}
		if len(all) > 0 {
			return all, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var page smartRecruitersPage
		if err := json.Unmarshal(data, &page); err != nil {
			return false
		}
		fromScript = s.convert(page.Content)
		return len(fromScript) > 0
	})
	if len(fromScript) > 0 {
		return fromScript, nil
	}

	return s.extractHTML(req)
}

func (s *SmartRecruiters) convert(postings []smartRecruitersPosting) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(postings))
	for _, p := range postings {
		title := cleanText(p.Name)
		if title == "" {
			s.logger.Debug("skipping smartrecruiters posting without title", zap.String("id", p.ID))
			continue
		}
		locParts := []string{}
		for _, part := range []string{p.Location.City, p.Location.Region, p.Location.Country} {
			if c := cleanText(part); c != "" {
				locParts = append(locParts, c)
			}
		}
		location := strings.Join(locParts, ", ")
		var posted *time.Time
		if !p.ReleasedDate.IsZero() {
			t := p.ReleasedDate.UTC()
			posted = &t
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      fmt.Sprintf("https://jobs.smartrecruiters.com/x/%s", p.ID),
			Location:       location,
			Department:     cleanText(p.Department.Label),
			EmploymentType: cleanText(p.TypeOfEmployment.Label),
			PostedAt:       posted,
			Remote:         p.Location.Remote || isRemote(location, title),
		})
	}
	return jobs
}

func (s *SmartRecruiters) extractHTML(req Request) ([]domain.ExtractedJob, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Content))
	if err != nil {
		return nil, fmt.Errorf("parse smartrecruiters html: %w", err)
	}

	var jobs []domain.ExtractedJob
	doc.Find("a.link--block, li.opening-job a").Each(func(_ int, a *goquery.Selection) {
		title := cleanText(a.Find("h4, .job-title").First().Text())
		if title == "" {
			title = cleanText(a.Text())
		}
		if title == "" {
			return
		}
		href, _ := a.Attr("href")
		location := cleanText(a.Find(".job-location, li.job-desc").First().Text())
		jobs = append(jobs, domain.ExtractedJob{
			Title:     title,
			SourceURL: absoluteURL(req.SourceURL, href),
			Location:  location,
			Remote:    isRemote(location, title),
		})
	})
	return jobs, nil
}
