package domain

import (
	"time"

	"github.com/google/uuid"
)

// CrawlSnapshot is one fetched capture of a company's careers page. A
// snapshot is immutable once written except for the one-time transition of
// Rendered from false to true; each crawl cycle creates a new snapshot.
type CrawlSnapshot struct {
	ID          uuid.UUID `json:"id"`
	CompanyID   uuid.UUID `json:"company_id"`
	URL         string    `json:"url"`
	ContentHash string    `json:"content_hash"`
	BlobURI     string    `json:"blob_uri"`
	StatusCode  int       `json:"status_code"`
	Rendered    bool      `json:"rendered"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ExtractedJob is the transport record produced by an extractor from one
// snapshot. It is consumed immediately by normalization and never persisted
// as-is.
type ExtractedJob struct {
	Title          string     `json:"title"`
	SourceURL      string     `json:"source_url"`
	Location       string     `json:"location,omitempty"`
	Department     string     `json:"department,omitempty"`
	EmploymentType string     `json:"employment_type,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	Description    string     `json:"description,omitempty"`
	SalaryText     string     `json:"salary_text,omitempty"`
	Remote         bool       `json:"remote"`
}

// Job is the canonical persisted posting. Uniqueness key is the
// (company, source URL) fingerprint; re-extraction updates the row in place.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	CompanyID      uuid.UUID  `json:"company_id"`
	Fingerprint    string     `json:"fingerprint"`
	Title          string     `json:"title"`
	SourceURL      string     `json:"source_url"`
	Location       string     `json:"location,omitempty"`
	Department     string     `json:"department,omitempty"`
	EmploymentType string     `json:"employment_type,omitempty"`
	RoleFamily     string     `json:"role_family,omitempty"`
	Seniority      string     `json:"seniority,omitempty"`
	Skills         []string   `json:"skills,omitempty"`
	SalaryMin      int        `json:"salary_min,omitempty"`
	SalaryMax      int        `json:"salary_max,omitempty"`
	Remote         bool       `json:"remote"`
	Freshness      float64    `json:"freshness"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	Active         bool       `json:"active"`
	FirstSeen      time.Time  `json:"first_seen"`
	LastSeen       time.Time  `json:"last_seen"`
}
