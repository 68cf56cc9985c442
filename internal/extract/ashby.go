package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// ashbyBoard is the posting-api job-board shape.
type ashbyBoard struct {
	Jobs []ashbyJob `json:"jobs"`
}

type ashbyJob struct {
	Title          string `json:"title"`
	JobURL         string `json:"jobUrl"`
	ApplyURL       string `json:"applyUrl"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	EmploymentType string `json:"employmentType"`
	IsRemote       bool   `json:"isRemote"`
	PublishedAt    string `json:"publishedAt"`
	DescriptionRaw string `json:"descriptionPlain"`
	Compensation   struct {
		ScrapeableText string `json:"scrapeableCompensationSalarySummary"`
	} `json:"compensation"`
}

// Ashby extracts postings from Ashby boards.
type Ashby struct {
	client *http.Client
	logger *zap.Logger
}

// NewAshby builds the extractor.
func NewAshby(client *http.Client, logger *zap.Logger) *Ashby {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ashby{client: client, logger: logger}
}

// Type implements Extractor.
func (a *Ashby) Type() domain.ATSType { return domain.ATSAshby }

// Extract applies the sniffing chain to Ashby content. Ashby boards are
// fully client-rendered, so the HTML heuristic step is intentionally
// omitted; an unrendered shell yields nothing and escalates upstream.
func (a *Ashby) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if looksLikeJSON(req.Content) {
		var board ashbyBoard
		if err := json.Unmarshal(req.Content, &board); err == nil {
			if jobs := a.convert(board); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	slug := req.CompanySlug
	if slug == "" && strings.Contains(req.SourceURL, "ashbyhq.com") {
		slug = slugFromPath(req.SourceURL)
	}
	if slug != "" {
		apiURL := fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s?includeCompensation=true", slug)
		var board ashbyBoard
		if err := fetchJSON(ctx, a.client, apiURL, &board); err != nil {
			a.logger.Debug("ashby api fetch failed", zap.String("slug", slug), zap.Error(err))
		} else if jobs := a.convert(board); len(jobs) > 0 {
			return jobs, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var board ashbyBoard
		if err := json.Unmarshal(data, &board); err != nil {
			return false
		}
		fromScript = a.convert(board)
		return len(fromScript) > 0
	})
	return fromScript, nil
}

func (a *Ashby) convert(board ashbyBoard) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(board.Jobs))
	for _, j := range board.Jobs {
		title := cleanText(j.Title)
		if title == "" {
			a.logger.Debug("skipping ashby job without title", zap.String("url", j.JobURL))
			continue
		}
		jobURL := j.JobURL
		if jobURL == "" {
			jobURL = j.ApplyURL
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      jobURL,
			Location:       cleanText(j.Location),
			Department:     cleanText(j.Department),
			EmploymentType: cleanText(j.EmploymentType),
			PostedAt:       parseTimestamp(j.PublishedAt),
			Description:    j.DescriptionRaw,
			SalaryText:     cleanText(j.Compensation.ScrapeableText),
			Remote:         j.IsRemote || isRemote(j.Location, title),
		})
	}
	return jobs
}
