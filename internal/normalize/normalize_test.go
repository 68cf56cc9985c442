package normalize

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhire/jobradar/internal/domain"
)

func TestRoleFamily(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Senior Data Engineer", "data"},
		{"Machine Learning Engineer", "data"},
		{"Site Reliability Engineer", "devops"},
		{"iOS Developer", "mobile"},
		{"Frontend Engineer", "frontend"},
		{"Backend Developer", "backend"},
		{"Software Engineer", "engineering"},
		{"Product Designer", "design"},
		{"Product Manager", "product"},
		{"Account Executive", "sales"},
		{"Growth Lead", "marketing"},
		{"Customer Success Specialist", "support"},
		{"Finance Associate", "operations"},
		{"Barista", "other"},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			assert.Equal(t, tc.want, RoleFamily(tc.title))
		})
	}
}

func TestSeniority(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Senior Software Engineer", "senior"},
		{"Staff Engineer", "senior"},
		{"Head of Data", "senior"},
		{"Junior Developer", "junior"},
		{"Engineering Intern", "junior"},
		{"Software Engineer I", "junior"},
		{"Software Engineer II", "mid"},
		{"Software Engineer", "mid"},
		// Lowercase "ii" in prose must not trip the ladder patterns.
		{"Engineer working on wifi", "mid"},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			assert.Equal(t, tc.want, Seniority(tc.title))
		})
	}
}

func TestSkills(t *testing.T) {
	got := Skills("We use Go, Postgres and Kubernetes. Bonus: Terraform on GCP.")
	assert.Equal(t, []string{"go", "kubernetes", "terraform", "gcp", "sql"}, got)

	// Word boundaries: "go" inside other words does not count.
	assert.Empty(t, Skills("category management for good governance"))

	// Deterministic ordering regardless of text order.
	assert.Equal(t, []string{"python", "rust"}, Skills("Rust and Python"))
}

func TestParseSalary(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		min, max int
	}{
		{"range with k suffix", "€70k - €90k per year", 70000, 90000},
		{"grouped thousands", "$90,000 - $120,000", 90000, 120000},
		{"european grouping", "90.000 EUR", 90000, 90000},
		{"single amount", "up to 150000 USD", 150000, 150000},
		{"fractional k", "92.5k", 92500, 92500},
		{"hourly rate ignored", "$45 per hour", 0, 0},
		{"empty", "", 0, 0},
		{"no numbers", "competitive salary", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			min, max := ParseSalary(tc.text)
			assert.Equal(t, tc.min, min)
			assert.Equal(t, tc.max, max)
		})
	}
}

func TestFreshness(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.5, Freshness(nil, now))
	assert.Equal(t, 1.0, Freshness(&now, now))

	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)
	assert.InDelta(t, 0.5, Freshness(&twoWeeksAgo, now), 0.001)

	fourWeeksAgo := now.Add(-28 * 24 * time.Hour)
	assert.InDelta(t, 0.25, Freshness(&fourWeeksAgo, now), 0.001)

	ancient := now.Add(-365 * 24 * time.Hour)
	assert.Equal(t, 0.01, Freshness(&ancient, now))

	// Monotonic: newer postings never score below older ones.
	recent := now.Add(-24 * time.Hour)
	assert.Greater(t, Freshness(&recent, now), Freshness(&twoWeeksAgo, now))
}

func TestNormalizerJob(t *testing.T) {
	n := New()
	companyID := uuid.New()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	posted := now.Add(-24 * time.Hour)

	extracted := domain.ExtractedJob{
		Title:       "Senior Backend Engineer",
		SourceURL:   "https://boards.greenhouse.io/acme/jobs/123",
		Location:    "Berlin",
		Description: "Go and Postgres services on Kubernetes",
		SalaryText:  "€80k - €100k",
		PostedAt:    &posted,
		Remote:      true,
	}

	job := n.Job(companyID, extracted, now)

	require.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, companyID, job.CompanyID)
	assert.Equal(t, "backend", job.RoleFamily)
	assert.Equal(t, "senior", job.Seniority)
	assert.Equal(t, []string{"go", "kubernetes", "sql"}, job.Skills)
	assert.Equal(t, 80000, job.SalaryMin)
	assert.Equal(t, 100000, job.SalaryMax)
	assert.True(t, job.Remote)
	assert.True(t, job.Active)
	assert.Equal(t, now, job.FirstSeen)
	assert.Equal(t, now, job.LastSeen)
	assert.Greater(t, job.Freshness, 0.9)

	// Fingerprint depends only on company and source URL, so re-extraction
	// lands on the same row.
	again := n.Job(companyID, extracted, now.Add(time.Hour))
	assert.Equal(t, job.Fingerprint, again.Fingerprint)
	assert.NotEqual(t, job.Fingerprint, n.Job(uuid.New(), extracted, now).Fingerprint)
}
