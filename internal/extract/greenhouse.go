package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// greenhouseBoard is the boards-api JSON shape, also found inlined on
// hosted boards.
type greenhouseBoard struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Content     string `json:"content"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
	Metadata []struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	} `json:"metadata"`
}

// Greenhouse extracts postings from Greenhouse boards.
type Greenhouse struct {
	client *http.Client
	logger *zap.Logger
}

// NewGreenhouse builds the extractor. A nil client disables the direct-API
// step.
func NewGreenhouse(client *http.Client, logger *zap.Logger) *Greenhouse {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Greenhouse{client: client, logger: logger}
}

// Type implements Extractor.
func (g *Greenhouse) Type() domain.ATSType { return domain.ATSGreenhouse }

// Extract applies the sniffing chain to Greenhouse content.
func (g *Greenhouse) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if looksLikeJSON(req.Content) {
		var board greenhouseBoard
		if err := json.Unmarshal(req.Content, &board); err == nil {
			if jobs := g.convert(board, req.SourceURL); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	slug := req.CompanySlug
	if slug == "" && strings.Contains(req.SourceURL, "greenhouse.io") {
		slug = slugFromPath(req.SourceURL)
	}
	if slug != "" {
		apiURL := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", slug)
		var board greenhouseBoard
		if err := fetchJSON(ctx, g.client, apiURL, &board); err != nil {
			g.logger.Debug("greenhouse api fetch failed", zap.String("slug", slug), zap.Error(err))
		} else if jobs := g.convert(board, req.SourceURL); len(jobs) > 0 {
			return jobs, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var board greenhouseBoard
		if err := json.Unmarshal(data, &board); err != nil {
			return false
		}
		fromScript = g.convert(board, req.SourceURL)
		return len(fromScript) > 0
	})
	if len(fromScript) > 0 {
		return fromScript, nil
	}

	return g.extractHTML(req)
}

func (g *Greenhouse) convert(board greenhouseBoard, sourceURL string) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(board.Jobs))
	for _, j := range board.Jobs {
		if cleanText(j.Title) == "" {
			g.logger.Debug("skipping greenhouse job without title", zap.String("url", j.AbsoluteURL))
			continue
		}
		dept := ""
		if len(j.Departments) > 0 {
			dept = cleanText(j.Departments[0].Name)
		}
		jobURL := j.AbsoluteURL
		if jobURL == "" {
			jobURL = sourceURL
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:       cleanText(j.Title),
			SourceURL:   jobURL,
			Location:    cleanText(j.Location.Name),
			Department:  dept,
			PostedAt:    parseTimestamp(j.UpdatedAt),
			Description: j.Content,
			Remote:      isRemote(j.Location.Name, j.Title),
		})
	}
	return jobs
}

// extractHTML falls back to the anchor heuristics Greenhouse boards have
// used for years: links to /<slug>/jobs/<id>.
func (g *Greenhouse) extractHTML(req Request) ([]domain.ExtractedJob, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Content))
	if err != nil {
		return nil, fmt.Errorf("parse greenhouse html: %w", err)
	}

	seen := map[string]bool{}
	var jobs []domain.ExtractedJob
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs := absoluteURL(req.SourceURL, href)
		if abs == "" || !strings.Contains(strings.ToLower(abs), "/jobs/") {
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true

		title := cleanText(a.Text())
		if title == "" || looksLikeJunkTitle(title) {
			return
		}
		location := cleanText(a.Parent().Find(".location").First().Text())
		jobs = append(jobs, domain.ExtractedJob{
			Title:     title,
			SourceURL: abs,
			Location:  location,
			Remote:    isRemote(location, title),
		})
	})
	return jobs, nil
}

func looksLikeJunkTitle(t string) bool {
	l := strings.ToLower(t)
	return l == "apply" || strings.HasPrefix(l, "view ") || strings.HasPrefix(l, "apply ")
}
