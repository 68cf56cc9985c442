// Package domain defines the core records shared across the discovery,
// crawl, extraction, and pipeline subsystems.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ATSType identifies the applicant tracking system hosting a company's
// job postings.
type ATSType string

// Known ATS identifiers. ATSUnknown routes to the generic extractor.
const (
	ATSGreenhouse      ATSType = "greenhouse"
	ATSLever           ATSType = "lever"
	ATSWorkday         ATSType = "workday"
	ATSSmartRecruiters ATSType = "smartrecruiters"
	ATSAshby           ATSType = "ashby"
	ATSRecruitee       ATSType = "recruitee"
	ATSBambooHR        ATSType = "bamboohr"
	ATSUnknown         ATSType = "unknown"
)

// SupportedATS lists the ATS types eligible for the fully automated
// pipeline. Everything else gets best-effort generic extraction.
var SupportedATS = map[ATSType]bool{
	ATSGreenhouse:      true,
	ATSLever:           true,
	ATSWorkday:         true,
	ATSSmartRecruiters: true,
	ATSAshby:           true,
	ATSRecruitee:       true,
}

// Company is a persisted employer record. Companies are never hard-deleted;
// Active is cleared instead.
type Company struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	CareersURL string    `json:"careers_url"`
	ATSType    ATSType   `json:"ats_type"`
	Location   string    `json:"location,omitempty"`
	Source     string    `json:"source"`
	Verified   bool      `json:"verified"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DiscoveredCompany is the ephemeral output of a discovery source. It lives
// only until the deduplication service classifies it.
type DiscoveredCompany struct {
	Name       string  `json:"name"`
	Domain     string  `json:"domain"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// DiscoveryQueueEntry is a deduplicated candidate awaiting validation
// before promotion to a Company.
type DiscoveryQueueEntry struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	QueuedAt   time.Time `json:"queued_at"`
}

// SourceStats reports per-source counts for one discovery run.
type SourceStats struct {
	Source     string `json:"source"`
	Discovered int    `json:"discovered"`
	Deduped    int    `json:"deduped"`
	Errored    int    `json:"errored"`
}

// DiscoveryRun records one execution of the discovery orchestrator.
type DiscoveryRun struct {
	ID          uuid.UUID     `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Stats       []SourceStats `json:"stats"`
}
