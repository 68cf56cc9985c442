// Package discovery finds candidate employers from public surfaces and
// funnels them through deduplication into the validation queue.
package discovery

import (
	"context"
	"net/http"
	"time"

	"github.com/openhire/jobradar/internal/domain"
)

// Source produces company candidates from one public surface. Sources are
// independent; one source failing never aborts a discovery run.
type Source interface {
	// Name is the stable identifier recorded on candidates and run stats.
	Name() string
	// Discover returns every candidate the source can currently see.
	Discover(ctx context.Context) ([]domain.DiscoveredCompany, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
