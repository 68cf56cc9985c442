package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

// roundTripFunc lets tests stand in for the ATS APIs without real sockets.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// countingClient records every outbound request and serves from handler.
func countingClient(calls *int, handler roundTripFunc) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		*calls++
		if handler == nil {
			return nil, fmt.Errorf("unexpected request to %s", req.URL)
		}
		return handler(req)
	})}
}

const greenhouseBoardJSON = `{
  "jobs": [
    {
      "title": "Senior Backend Engineer",
      "absolute_url": "https://boards.greenhouse.io/acme/jobs/4001",
      "updated_at": "2026-08-01T10:00:00-04:00",
      "location": {"name": "New York, NY"},
      "departments": [{"name": "Engineering"}],
      "content": "Build things."
    },
    {
      "title": "",
      "absolute_url": "https://boards.greenhouse.io/acme/jobs/4002"
    }
  ]
}`

func TestGreenhouseJSONContentSkipsNetworkAndHTML(t *testing.T) {
	calls := 0
	g := NewGreenhouse(countingClient(&calls, nil), zap.NewNop())

	jobs, err := g.Extract(context.Background(), Request{
		Content:   []byte(greenhouseBoardJSON),
		SourceURL: "https://boards.greenhouse.io/acme",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1, "titleless record must be skipped, valid one kept")
	assert.Equal(t, "Senior Backend Engineer", jobs[0].Title)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/4001", jobs[0].SourceURL)
	assert.Equal(t, "New York, NY", jobs[0].Location)
	assert.Equal(t, "Engineering", jobs[0].Department)
	assert.Zero(t, calls, "json content must not trigger the api step")
}

func TestGreenhouseInlinedScript(t *testing.T) {
	page := `<html><head><script>window.__board = ` + greenhouseBoardJSON + `;</script></head><body></body></html>`
	calls := 0
	g := NewGreenhouse(countingClient(&calls, roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})), zap.NewNop())

	jobs, err := g.Extract(context.Background(), Request{
		Content:   []byte(page),
		SourceURL: "https://careers.acme.example/jobs",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Senior Backend Engineer", jobs[0].Title)
}

func TestGreenhouseHTMLAnchors(t *testing.T) {
	page := `<html><body>
	  <div class="opening">
	    <a href="/acme/jobs/4001">Platform Engineer</a>
	    <span class="location">Remote - US</span>
	  </div>
	  <div class="opening"><a href="/acme/jobs/4001">Platform Engineer</a></div>
	  <a href="/about">Apply now</a>
	</body></html>`
	calls := 0
	g := NewGreenhouse(countingClient(&calls, nil), zap.NewNop())

	jobs, err := g.Extract(context.Background(), Request{
		Content:   []byte(page),
		SourceURL: "https://careers.acme.example/jobs",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1, "duplicate hrefs and junk anchors must be dropped")
	assert.Equal(t, "Platform Engineer", jobs[0].Title)
	assert.Equal(t, "https://careers.acme.example/acme/jobs/4001", jobs[0].SourceURL)
}

func TestLeverJSONArray(t *testing.T) {
	content := `[
	  {
	    "id": "p1",
	    "text": "Data Engineer",
	    "hostedUrl": "https://jobs.lever.co/acme/p1",
	    "createdAt": 1767225600000,
	    "categories": {"location": "Berlin", "team": "Data", "commitment": "Full-time"},
	    "salaryRange": {"range": "€70k – €90k"},
	    "workplaceType": "hybrid"
	  }
	]`
	calls := 0
	l := NewLever(countingClient(&calls, nil), zap.NewNop())

	jobs, err := l.Extract(context.Background(), Request{
		Content:   []byte(content),
		SourceURL: "https://jobs.lever.co/acme",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Data Engineer", jobs[0].Title)
	assert.Equal(t, "Berlin", jobs[0].Location)
	assert.Equal(t, "Data", jobs[0].Department)
	require.NotNil(t, jobs[0].PostedAt)
	assert.Equal(t, 2026, jobs[0].PostedAt.Year())
	assert.Zero(t, calls)
}

func TestLeverAPIFallback(t *testing.T) {
	calls := 0
	client := countingClient(&calls, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host != "api.lever.co" {
			return nil, fmt.Errorf("unexpected host %s", req.URL.Host)
		}
		assert.Contains(t, req.URL.Path, "/v0/postings/acme")
		return jsonResponse(http.StatusOK, `[{"text": "SRE", "hostedUrl": "https://jobs.lever.co/acme/p2"}]`), nil
	}))
	l := NewLever(client, zap.NewNop())

	jobs, err := l.Extract(context.Background(), Request{
		Content:   []byte(`<html><body>Loading…</body></html>`),
		SourceURL: "https://jobs.lever.co/acme",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "SRE", jobs[0].Title)
	assert.Equal(t, 1, calls)
}

func workdayPage(offset, count, total int) string {
	postings := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		postings = append(postings, map[string]any{
			"title":         fmt.Sprintf("Engineer %d", offset+i),
			"externalPath":  fmt.Sprintf("/job/eng-%d", offset+i),
			"locationsText": "Austin, TX",
			"postedOnDate":  "2026-08-20",
			"timeType":      "Full time",
		})
	}
	page, _ := json.Marshal(map[string]any{"total": total, "jobPostings": postings})
	return string(page)
}

func TestWorkdayPaginatedAPI(t *testing.T) {
	var offsets []int
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "/wday/cxs/acme/External/jobs", req.URL.Path)
		var body workdayRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		offsets = append(offsets, body.Offset)
		if body.Offset == 0 {
			return jsonResponse(http.StatusOK, workdayPage(0, workdayPageSize, 25)), nil
		}
		return jsonResponse(http.StatusOK, workdayPage(body.Offset, 5, 25)), nil
	})}
	w := NewWorkday(client, zap.NewNop())

	jobs, err := w.Extract(context.Background(), Request{
		Content:   []byte(`<html><body></body></html>`),
		SourceURL: "https://acme.wd5.myworkdayjobs.com/en-US/External",
	})
	require.NoError(t, err)
	assert.Len(t, jobs, 25)
	assert.Equal(t, []int{0, workdayPageSize}, offsets)
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/External/job/eng-0", jobs[0].SourceURL)
}

func TestGenericJSONLD(t *testing.T) {
	page := `<html><head>
	  <script type="application/ld+json">
	  {"@type": "JobPosting", "title": "ML Engineer", "url": "https://acme.example/jobs/ml",
	   "datePosted": "2026-07-15",
	   "jobLocation": {"address": {"addressLocality": "Toronto", "addressCountry": "CA"}},
	   "employmentType": "FULL_TIME", "jobLocationType": "TELECOMMUTE"}
	  </script>
	</head><body><a href="/jobs/other">Other role</a></body></html>`
	g := NewGeneric(zap.NewNop())

	jobs, err := g.Extract(context.Background(), Request{
		Content:   []byte(page),
		SourceURL: "https://acme.example/careers",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1, "structured data must win over anchor heuristics")
	assert.Equal(t, "ML Engineer", jobs[0].Title)
	assert.Equal(t, "Toronto, CA", jobs[0].Location)
	assert.True(t, jobs[0].Remote)
}

func TestGenericAnchors(t *testing.T) {
	page := `<html><body>
	  <a href="/careers/frontend-engineer">Frontend Engineer</a>
	  <a href="/openings/designer">Product Designer</a>
	  <a href="/blog/hiring-update">Our hiring update for the year, a very long editorial piece</a>
	  <a href="/careers/frontend-engineer">Frontend Engineer</a>
	</body></html>`
	g := NewGeneric(zap.NewNop())

	jobs, err := g.Extract(context.Background(), Request{
		Content:   []byte(page),
		SourceURL: "https://acme.example/careers",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Frontend Engineer", jobs[0].Title)
	assert.Equal(t, "https://acme.example/careers/frontend-engineer", jobs[0].SourceURL)
}

type fakeModel struct {
	resp  string
	err   error
	calls int
}

func (f *fakeModel) GenerateJSON(context.Context, string) (string, error) {
	f.calls++
	return f.resp, f.err
}

func (f *fakeModel) Close() error { return nil }

func TestLLMExtractor(t *testing.T) {
	model := &fakeModel{resp: `[
	  {"title": "Support Lead", "url": "/jobs/support-lead", "location": "Remote", "remote": true},
	  {"title": "", "url": "/jobs/ghost"}
	]`}
	l := NewLLM(model, zap.NewNop())

	jobs, err := l.Extract(context.Background(), Request{
		Content:   []byte(`<html><body><h1>Join us</h1></body></html>`),
		SourceURL: "https://acme.example/careers",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Support Lead", jobs[0].Title)
	assert.Equal(t, "https://acme.example/jobs/support-lead", jobs[0].SourceURL)
	assert.True(t, jobs[0].Remote)
	assert.Equal(t, 1, model.calls)
}

func TestRegistryPrefersConcreteExtractor(t *testing.T) {
	calls := 0
	reg := NewRegistry(countingClient(&calls, nil), nil, zap.NewNop())

	jobs, via, err := reg.Extract(context.Background(), domain.ATSGreenhouse, Request{
		Content:   []byte(greenhouseBoardJSON),
		SourceURL: "https://boards.greenhouse.io/acme",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "greenhouse", via)
	assert.Zero(t, calls)
}

func TestRegistryFallsBackToGeneric(t *testing.T) {
	calls := 0
	client := countingClient(&calls, roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{}`), nil
	}))
	reg := NewRegistry(client, nil, zap.NewNop())

	page := `<html><body><a href="/careers/analyst">Business Analyst</a></body></html>`
	jobs, via, err := reg.Extract(context.Background(), domain.ATSLever, Request{
		Content:   []byte(page),
		SourceURL: "https://acme.example/careers",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "generic", via)
	assert.Equal(t, "Business Analyst", jobs[0].Title)
}

func TestRegistryLLMLastResort(t *testing.T) {
	model := &fakeModel{resp: `[{"title": "Field Technician", "url": "https://acme.example/jobs/tech"}]`}
	reg := NewRegistry(&http.Client{Timeout: time.Second, Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})}, NewLLM(model, zap.NewNop()), zap.NewNop())

	page := `<html><body><div>Openings load dynamically.</div></body></html>`
	jobs, via, err := reg.Extract(context.Background(), domain.ATSUnknown, Request{
		Content:   []byte(page),
		SourceURL: "https://acme.example/careers",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "llm", via)
	assert.Equal(t, 1, model.calls)
}

func TestRegistryEmptyWithoutLLM(t *testing.T) {
	reg := NewRegistry(&http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})}, nil, zap.NewNop())

	jobs, via, err := reg.Extract(context.Background(), domain.ATSUnknown, Request{
		Content:   []byte(`<html><body></body></html>`),
		SourceURL: "https://acme.example/careers",
	})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, via)
}
