// Package normalize converts extracted postings into canonical job records:
// role family and seniority classification, skill tagging, salary parsing,
// and the freshness score.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/hash/sha256"
)

// roleFamilies map keyword sets to canonical families, checked in order so
// the more specific families win.
var roleFamilies = []struct {
	family   string
	keywords []string
}{
	{"data", []string{"data engineer", "data scientist", "analytics", "machine learning", "ml engineer", "ai engineer", "data analyst"}},
	{"security", []string{"security", "appsec", "infosec", "penetration"}},
	{"devops", []string{"devops", "site reliability", "sre", "platform engineer", "infrastructure"}},
	{"mobile", []string{"ios", "android", "mobile"}},
	{"frontend", []string{"frontend", "front-end", "front end", "react", "ui engineer"}},
	{"backend", []string{"backend", "back-end", "back end", "server-side"}},
	{"engineering", []string{"engineer", "developer", "programmer", "software", "architect"}},
	{"design", []string{"designer", "design", "ux", "user experience"}},
	{"product", []string{"product manager", "product owner", "program manager"}},
	{"sales", []string{"sales", "account executive", "business development"}},
	{"marketing", []string{"marketing", "growth", "content", "seo"}},
	{"support", []string{"support", "customer success", "customer experience"}},
	{"operations", []string{"operations", "finance", "legal", "people", "recruiter", "hr "}},
}

// RoleFamily classifies a title into a canonical family, or "other".
func RoleFamily(title string) string {
	lowered := strings.ToLower(title)
	for _, rf := range roleFamilies {
		for _, kw := range rf.keywords {
			if strings.Contains(lowered, kw) {
				return rf.family
			}
		}
	}
	return "other"
}

var (
	juniorPattern = regexp.MustCompile(`(?i)\b(junior|jr\.?|entry[ -]level|graduate|intern(ship)?|associate)\b`)
	seniorPattern = regexp.MustCompile(`(?i)\b(senior|sr\.?|staff|principal|lead|head of|director|vp|chief)\b`)
	// Bare roman numerals distinguish ladder steps: I is junior, II mid.
	levelOnePattern = regexp.MustCompile(`\bI\b`)
	levelTwoPattern = regexp.MustCompile(`\bII\b`)
)

// Seniority buckets a title into junior, mid, or senior.
func Seniority(title string) string {
	switch {
	case seniorPattern.MatchString(title):
		return "senior"
	case juniorPattern.MatchString(title):
		return "junior"
	case levelTwoPattern.MatchString(title):
		return "mid"
	case levelOnePattern.MatchString(title):
		return "junior"
	default:
		return "mid"
	}
}

// skillPatterns tag well-known technologies in titles and descriptions.
// Word boundaries keep "go" and "r" from matching prose.
var skillPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`(?i)\b(golang|go)\b`),
	"python":     regexp.MustCompile(`(?i)\bpython\b`),
	"java":       regexp.MustCompile(`(?i)\bjava\b`),
	"typescript": regexp.MustCompile(`(?i)\btypescript\b`),
	"javascript": regexp.MustCompile(`(?i)\bjavascript\b`),
	"react":      regexp.MustCompile(`(?i)\breact(\.js)?\b`),
	"rust":       regexp.MustCompile(`(?i)\brust\b`),
	"ruby":       regexp.MustCompile(`(?i)\b(ruby|rails)\b`),
	"c++":        regexp.MustCompile(`(?i)c\+\+`),
	"c#":         regexp.MustCompile(`(?i)c#|\.net\b`),
	"kubernetes": regexp.MustCompile(`(?i)\b(kubernetes|k8s)\b`),
	"docker":     regexp.MustCompile(`(?i)\bdocker\b`),
	"terraform":  regexp.MustCompile(`(?i)\bterraform\b`),
	"aws":        regexp.MustCompile(`(?i)\baws\b`),
	"gcp":        regexp.MustCompile(`(?i)\b(gcp|google cloud)\b`),
	"azure":      regexp.MustCompile(`(?i)\bazure\b`),
	"sql":        regexp.MustCompile(`(?i)\b(sql|postgres(ql)?|mysql)\b`),
	"kafka":      regexp.MustCompile(`(?i)\bkafka\b`),
	"redis":      regexp.MustCompile(`(?i)\bredis\b`),
	"graphql":    regexp.MustCompile(`(?i)\bgraphql\b`),
}

// skillOrder keeps Skills output deterministic.
var skillOrder = []string{
	"go", "python", "java", "typescript", "javascript", "react", "rust",
	"ruby", "c++", "c#", "kubernetes", "docker", "terraform", "aws", "gcp",
	"azure", "sql", "kafka", "redis", "graphql",
}

// Skills extracts known technology tags from free text.
func Skills(text string) []string {
	var out []string
	for _, skill := range skillOrder {
		if skillPatterns[skill].MatchString(text) {
			out = append(out, skill)
		}
	}
	return out
}

// salaryNumber matches amounts like 90,000, 90000, 90k, or 90.5k.
var (
	salaryNumber     = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d+(?:\.\d+)?)[ ]?([kK])?`)
	groupedThousands = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
)

// ParseSalary pulls a min and max annual amount out of free-form salary
// text. Zero values mean the text held no usable numbers.
func ParseSalary(text string) (min, max int) {
	matches := salaryNumber.FindAllStringSubmatch(text, -1)
	var amounts []int
	for _, m := range matches {
		raw := m[1]
		if groupedThousands.MatchString(raw) {
			// 90,000 or 90.000 style grouping.
			raw = strings.NewReplacer(",", "", ".", "").Replace(raw)
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			val *= 1000
		}
		// Hourly rates and stray small numbers are not annual salaries.
		if val < 10000 {
			continue
		}
		amounts = append(amounts, int(val))
	}
	if len(amounts) == 0 {
		return 0, 0
	}
	min, max = amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}
	return min, max
}

// freshnessHalfLife controls the exponential decay of the freshness score.
const freshnessHalfLife = 14 * 24 * time.Hour

// Freshness scores a posting in (0, 1]: 1.0 when posted now, halving every
// two weeks. Postings without a date score a neutral 0.5.
func Freshness(postedAt *time.Time, now time.Time) float64 {
	if postedAt == nil {
		return 0.5
	}
	age := now.Sub(*postedAt)
	if age <= 0 {
		return 1.0
	}
	halves := float64(age) / float64(freshnessHalfLife)
	score := math.Pow(0.5, halves)
	if score < 0.01 {
		score = 0.01
	}
	return score
}

// Normalizer converts extracted postings into canonical jobs.
type Normalizer struct {
	hasher *sha256.Hasher
}

// New builds a normalizer.
func New() *Normalizer {
	return &Normalizer{hasher: sha256.New()}
}

// Job converts one extracted posting for the given company. now feeds the
// freshness score and the seen timestamps.
func (n *Normalizer) Job(companyID uuid.UUID, e domain.ExtractedJob, now time.Time) domain.Job {
	salaryMin, salaryMax := ParseSalary(e.SalaryText)
	return domain.Job{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Fingerprint:    n.hasher.Fingerprint(companyID.String(), e.SourceURL),
		Title:          e.Title,
		SourceURL:      e.SourceURL,
		Location:       e.Location,
		Department:     e.Department,
		EmploymentType: e.EmploymentType,
		RoleFamily:     RoleFamily(e.Title),
		Seniority:      Seniority(e.Title),
		Skills:         Skills(e.Title + " " + e.Description),
		SalaryMin:      salaryMin,
		SalaryMax:      salaryMax,
		Remote:         e.Remote,
		Freshness:      Freshness(e.PostedAt, now),
		PostedAt:       e.PostedAt,
		Active:         true,
		FirstSeen:      now,
		LastSeen:       now,
	}
}
