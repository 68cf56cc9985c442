// Package blob defines the interface for archiving page captures. The
// abstraction keeps snapshots portable across Google Cloud Storage, the
// local filesystem, and an in-memory store for tests.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound signals that no object exists under the given path.
var ErrObjectNotFound = errors.New("blob object not found")

// Store persists raw page content and returns a stable URI for it.
type Store interface {
	// PutObject writes data under path and returns the object's URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject reads back an object previously written under path, or
	// returns ErrObjectNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// SnapshotPath builds the archive path for one capture. Rendered captures
// are stored next to the raw ones with a marker suffix.
func SnapshotPath(companyID uuid.UUID, fetchedAt time.Time, rendered bool) string {
	suffix := "raw"
	if rendered {
		suffix = "rendered"
	}
	return fmt.Sprintf("snapshots/%s/%s-%s.html",
		companyID, fetchedAt.UTC().Format("20060102T150405Z"), suffix)
}
