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

// recruiteeOffers is the public offers API shape.
type recruiteeOffers struct {
	Offers []recruiteeOffer `json:"offers"`
}

type recruiteeOffer struct {
	Title          string `json:"title"`
	CareersURL     string `json:"careers_url"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	EmploymentType string `json:"employment_type_code"`
	Remote         bool   `json:"remote"`
	CreatedAt      string `json:"created_at"`
	Description    string `json:"description"`
	Salary         struct {
		Min      json.Number `json:"min"`
		Max      json.Number `json:"max"`
		Currency string      `json:"currency"`
		Period   string      `json:"period"`
	} `json:"salary"`
}

// Recruitee extracts postings from Recruitee boards.
type Recruitee struct {
	client *http.Client
	logger *zap.Logger
}

// NewRecruitee builds the extractor.
func NewRecruitee(client *http.Client, logger *zap.Logger) *Recruitee {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recruitee{client: client, logger: logger}
}

// Type implements Extractor.
func (r *Recruitee) Type() domain.ATSType { return domain.ATSRecruitee }

// Extract applies the sniffing chain to Recruitee content.
func (r *Recruitee) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if looksLikeJSON(req.Content) {
		var offers recruiteeOffers
		if err := json.Unmarshal(req.Content, &offers); err == nil {
			if jobs := r.convert(offers); len(jobs) > 0 {
				return jobs, nil
			}
		}
	}

	slug := req.CompanySlug
	if slug == "" {
		slug = recruiteeSubdomain(req.SourceURL)
	}
	if slug != "" {
		apiURL := fmt.Sprintf("https://%s.recruitee.com/api/offers/", slug)
		var offers recruiteeOffers
		if err := fetchJSON(ctx, r.client, apiURL, &offers); err != nil {
			r.logger.Debug("recruitee api fetch failed", zap.String("slug", slug), zap.Error(err))
		} else if jobs := r.convert(offers); len(jobs) > 0 {
			return jobs, nil
		}
	}

	var fromScript []domain.ExtractedJob
	scanScriptTags(req.Content, func(data []byte) bool {
		var offers recruiteeOffers
		if err := json.Unmarshal(data, &offers); err != nil {
			return false
		}
		fromScript = r.convert(offers)
		return len(fromScript) > 0
	})
	return fromScript, nil
}

// recruiteeSubdomain pulls the company token from <slug>.recruitee.com.
func recruiteeSubdomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, ".recruitee.com") {
		return ""
	}
	return strings.TrimSuffix(host, ".recruitee.com")
}

func (r *Recruitee) convert(offers recruiteeOffers) []domain.ExtractedJob {
	jobs := make([]domain.ExtractedJob, 0, len(offers.Offers))
	for _, o := range offers.Offers {
		title := cleanText(o.Title)
		if title == "" {
			r.logger.Debug("skipping recruitee offer without title", zap.String("url", o.CareersURL))
			continue
		}
		salary := ""
		if o.Salary.Min != "" || o.Salary.Max != "" {
			salary = cleanText(fmt.Sprintf("%s-%s %s/%s", o.Salary.Min, o.Salary.Max, o.Salary.Currency, o.Salary.Period))
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      o.CareersURL,
			Location:       cleanText(o.Location),
			Department:     cleanText(o.Department),
			EmploymentType: cleanText(o.EmploymentType),
			PostedAt:       parseTimestamp(o.CreatedAt),
			Description:    o.Description,
			SalaryText:     salary,
			Remote:         o.Remote || isRemote(o.Location, title),
		})
	}
	return jobs
}
