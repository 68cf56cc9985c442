package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// leverPosting is the public postings-API shape.
type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Description     string `json:"description"` // html
	DescriptionText string `json:"descriptionPlain"`
	Salary          struct {
		Range string `json:"range"`
	} `json:"salaryRange"`
	WorkplaceType string `json:"workplaceType"`
}

// Lever extracts postings from Lever boards.
type Lever struct {
	client *http.Client
	logger *zap.Logger
}

// NewLever builds the extractor.
func NewLever(client *http.Client, logger *zap.Logger) *Lever {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lever{client: client, logger: logger}
}

// Type implements Extractor.
func (l *Lever) Type() domain.ATSType { return domain.ATSLever }

// Extract applies the sniffing chain to Lever content.
func (l *Lever) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if looksLikeJSON(req.Content) {
		var postings []leverPosting
		if err := json.Unmarshal(req.Content, &postings); err == nil {
			if jobs := l.convert(postings); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	slug := req.CompanySlug
	if slug == "" && strings.Contains(req.SourceURL, "lever.co") {
		slug = slugFromPath(req.SourceURL)
	}
	if slug != "" {
		apiURL := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", slug)
		var postings []leverPosting
		if err := fetchJSON(ctx, l.client, apiURL, &postings); err != nil {
			l.logger.Debug("lever api fetch failed", zap.String("slug", slug), zap.Error(err))
		} else if jobs := l.convert(postings); len(jobs) > 0 {
			return jobs, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var postings []leverPosting
		if err := json.Unmarshal(data, &postings); err != nil {
			return false
		}
		fromScript = l.convert(postings)
		return len(fromScript) > 0
	})
	if len(fromScript) > 0 {
		return fromScript, nil
	}

	return l.extractHTML(req)
}

func (l *Lever) convert(postings []leverPosting) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(postings))
	for _, p := range postings {
		title := cleanText(p.Text)
		if title == "" {
			l.logger.Debug("skipping lever posting without title", zap.String("id", p.ID))
			continue
		}
		var posted *time.Time
		if p.CreatedAt > 0 {
			posted = parseTimestamp(strconv.FormatInt(p.CreatedAt, 10))
		}
		desc := p.DescriptionText
		if desc == "" {
			desc = p.Description
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      p.HostedURL,
			Location:       cleanText(p.Categories.Location),
			Department:     cleanText(p.Categories.Team),
			EmploymentType: cleanText(p.Categories.Commitment),
			PostedAt:       posted,
			Description:    desc,
			SalaryText:     cleanText(p.Salary.Range),
			Remote:         p.WorkplaceType == "remote" || isRemote(p.Categories.Location, title),
		})
	}
	return jobs
}

// extractHTML parses the hosted board markup: div.posting blocks with a
// title anchor and categories.
func (l *Lever) extractHTML(req Request) ([]domain.ExtractedJob, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Content))
	if err != nil {
		return nil, fmt.Errorf("parse lever html: %w", err)
	}

	var jobs []domain.ExtractedJob
	doc.Find("div.posting").Each(func(_ int, sel *goquery.Selection) {
		anchor := sel.Find("a.posting-title").First()
		title := cleanText(anchor.Find("h5").First().Text())
		if title == "" {
			title = cleanText(anchor.Text())
		}
		if title == "" {
			return
		}
		href, _ := anchor.Attr("href")
		location := cleanText(sel.Find(".posting-categories .location").First().Text())
		team := cleanText(sel.Find(".posting-categories .department, .posting-categories .team").First().Text())
		jobs = append(jobs, domain.ExtractedJob{
			Title:      title,
			SourceURL:  absoluteURL(req.SourceURL, href),
			Location:   location,
			Department: team,
			Remote:     isRemote(location, title),
		})
	})
	return jobs, nil
}
