package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// workdayResponse is the cxs jobs endpoint shape.
type workdayResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayPosting `json:"jobPostings"`
}

type workdayPosting struct {
	Title         string `json:"title"`
	ExternalPath  string `json:"externalPath"`
	ExternalURL   string `json:"externalUrl"`
	LocationsText string `json:"locationsText"`
	PostedOnDate  string `json:"postedOnDate"`
	TimeType      string `json:"timeType"`
	RemoteType    string `json:"remoteType"`
}

type workdayRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

// workdayPageSize bounds one cxs request; tenants cap it at 20.
const workdayPageSize = 20

// Workday extracts postings from Workday-hosted boards. Workday boards are
// fully client-rendered, so the API and inlined-script steps carry almost
// all traffic; the HTML step only ever sees pre-rendered snapshots.
type Workday struct {
	client *http.Client
	logger *zap.Logger
}

// NewWorkday builds the extractor.
func NewWorkday(client *http.Client, logger *zap.Logger) *Workday {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workday{client: client, logger: logger}
}

// Type implements Extractor.
func (w *Workday) Type() domain.ATSType { return domain.ATSWorkday }

// Extract applies the sniffing chain to Workday content.
func (w *Workday) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if looksLikeJSON(req.Content) {
		var resp workdayResponse
		if err := json.Unmarshal(req.Content, &resp); err == nil {
			if jobs := w.convert(resp.JobPostings, req.SourceURL); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	if board, ok := parseWorkdayBoard(req.SourceURL); ok {
		jobs, err := w.fetchAll(ctx, board)
		if err != nil {
			w.logger.Debug("workday api fetch failed", zap.String("url", req.SourceURL), zap.Error(err))
		} else if len(jobs) > 0 {
			return jobs, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var resp workdayResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return false
		}
		fromScript = w.convert(resp.JobPostings, req.SourceURL)
		return len(fromScript) > 0
	})
	return fromScript, nil
}

type workdayBoard struct {
	scheme string
	host   string
	tenant string
	site   string
}

// parseWorkdayBoard splits https://<tenant>.wdN.myworkdayjobs.com/<site>
// into the pieces the cxs endpoint needs.
func parseWorkdayBoard(rawURL string) (workdayBoard, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(u.Host, "myworkday") {
		return workdayBoard{}, false
	}
	tenant := strings.Split(u.Host, ".")[0]
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if tenant == "" || len(parts) == 0 || parts[0] == "" {
		return workdayBoard{}, false
	}
	site := parts[0]
	// Locale prefixes like /en-US/<site> appear on some tenants.
	if len(parts) > 1 && len(parts[0]) == 5 && parts[0][2] == '-' {
		site = parts[1]
	}
	return workdayBoard{scheme: u.Scheme, host: u.Host, tenant: tenant, site: site}, true
}

func (w *Workday) fetchAll(ctx context.Context, board workdayBoard) ([]domain.ExtractedJob, error) {
	endpoint := fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", board.scheme, board.host, board.tenant, board.site)
	baseURL := fmt.Sprintf("%s://%s/%s", board.scheme, board.host, board.site)

	var all []domain.ExtractedJob
	for offset := 0; ; offset += workdayPageSize {
		payload, err := json.Marshal(workdayRequest{
			AppliedFacets: map[string]any{},
			Limit:         workdayPageSize,
			Offset:        offset,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal workday request: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("new workday request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := w.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("workday cxs post: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read workday body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("workday cxs status %d", resp.StatusCode)
		}

		var page workdayResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode workday page: %w", err)
		}
		all = append(all, w.convert(page.JobPostings, baseURL)...)
		if len(page.JobPostings) < workdayPageSize || len(all) >= page.Total {
			break
		}
	}
	return all, nil
}

func (w *Workday) convert(postings []workdayPosting, baseURL string) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(postings))
	for _, p := range postings {
		title := cleanText(p.Title)
		if title == "" {
			w.logger.Debug("skipping workday posting without title", zap.String("path", p.ExternalPath))
			continue
		}
		jobURL := p.ExternalURL
		if jobURL == "" && p.ExternalPath != "" {
			jobURL = absoluteURL(baseURL, p.ExternalPath)
		}
		remote := strings.EqualFold(p.RemoteType, "remote") || isRemote(p.LocationsText, title)
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      jobURL,
			Location:       cleanText(p.LocationsText),
			EmploymentType: cleanText(p.TimeType),
			PostedAt:       parseTimestamp(p.PostedOnDate),
			Remote:         remote,
		})
	}
	return jobs
}
