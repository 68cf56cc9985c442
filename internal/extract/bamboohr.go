package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// bambooList is the careers list API shape.
type bambooList struct {
	Result []bambooOpening `json:"result"`
}

type bambooOpening struct {
	ID             string `json:"id"`
	JobOpeningName string `json:"jobOpeningName"`
	DepartmentName string `json:"departmentLabel"`
	EmploymentType string `json:"employmentStatusLabel"`
	Location       struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"location"`
	IsRemote any `json:"isRemote"`
}

// BambooHR extracts postings from BambooHR hosted boards.
type BambooHR struct {
	client *http.Client
	logger *zap.Logger
}

// NewBambooHR builds the extractor.
func NewBambooHR(client *http.Client, logger *zap.Logger) *BambooHR {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BambooHR{client: client, logger: logger}
}

// Type implements Extractor.
func (b *BambooHR) Type() domain.ATSType { return domain.ATSBambooHR }

// Extract applies the sniffing chain to BambooHR content.
func (b *BambooHR) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	slug := req.CompanySlug
	if slug == "" {
		slug = bambooSubdomain(req.SourceURL)
	}

	if looksLikeJSON(req.Content) {
		var list bambooList
		if err := json.Unmarshal(req.Content, &list); err == nil {
			if jobs := b.convert(list, slug); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	if slug != "" {
		apiURL := fmt.Sprintf("https://%s.bamboohr.com/careers/list", slug)
		var list bambooList
		if err := fetchJSON(ctx, b.client, apiURL, &list); err != nil {
			b.logger.Debug("bamboohr api fetch failed", zap.String("slug", slug), zap.Error(err))
		} else if jobs := b.convert(list, slug); len(jobs) > 0 {
			return jobs, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var list bambooList
		if err := json.Unmarshal(data, &list); err != nil {
			return false
		}
		fromScript = b.convert(list, slug)
		return len(fromScript) > 0
	})
	return fromScript, nil
}

// bambooSubdomain pulls the company token from <slug>.bamboohr.com.
func bambooSubdomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, ".bamboohr.com") {
		return ""
	}
	return strings.TrimSuffix(host, ".bamboohr.com")
}

func (b *BambooHR) convert(list bambooList, slug string) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(list.Result))
	for _, o := range list.Result {
		title := cleanText(o.JobOpeningName)
		if title == "" {
			b.logger.Debug("skipping bamboohr opening without title", zap.String("id", o.ID))
			continue
		}
		sourceURL := ""
		if slug != "" && o.ID != "" {
			sourceURL = fmt.Sprintf("https://%s.bamboohr.com/careers/%s", slug, o.ID)
		}
		locParts := []string{}
		for _, part := range []string{o.Location.City, o.Location.State} {
			if c := cleanText(part); c != "" {
				locParts = append(locParts, c)
			}
		}
		location := strings.Join(locParts, ", ")
		remote := false
		switch v := o.IsRemote.(type) {
		case bool:
			remote = v
		case string:
			remote = strings.EqualFold(v, "true") || v == "1"
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      sourceURL,
			Location:       location,
			Department:     cleanText(o.DepartmentName),
			EmploymentType: cleanText(o.EmploymentType),
			Remote:         remote || isRemote(location, title),
		})
	}
	return jobs
}
