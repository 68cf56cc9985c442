// Package extract turns raw careers-page content into structured job
// postings. Each concrete extractor understands one ATS's page shapes and
// applies the same sniffing priority: known JSON payloads first, then the
// ATS's direct jobs API when a company identifier is known, then inlined
// script data, and finally CSS heuristics over the rendered HTML.
package extract

import (
	"context"
	"net/http"
	"time"

	"github.com/openhire/jobradar/internal/domain"
)

// Request carries one snapshot's content into an extractor.
type Request struct {
	Content []byte
	// SourceURL is the page the content was fetched from; used to resolve
	// relative links and to derive the company identifier.
	SourceURL string
	// CompanySlug optionally names the company on its ATS (board token,
	// tenant, etc). Enables the direct-API step when set.
	CompanySlug string
}

// Extractor produces jobs from one snapshot. A malformed individual record
// is logged and skipped; it never aborts the whole call. An empty result
// with a nil error means the content genuinely held no recognizable jobs.
type Extractor interface {
	Type() domain.ATSType
	Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}
