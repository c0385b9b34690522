package artifact

import (
	"context"
)

// Store is the artifact persistence contract.
//
// Implementations must be safe for concurrent use. Writes are once-only per
// (run ID, task ID); reads after a successful Put always return the same
// bytes.
type Store interface {
	// Put stores an artifact under (runID, art.TaskID). A second Put for
	// the same key fails with *errors.AlreadyExistsError and leaves the
	// first artifact untouched.
	Put(ctx context.Context, runID string, art *Artifact) error

	// Get returns the artifact for (runID, taskID), or
	// *errors.NotFoundError if no artifact has been stored.
	Get(ctx context.Context, runID, taskID string) (*Artifact, error)

	// List returns metadata for every artifact stored for the run, ordered
	// by phase and then task ID.
	List(ctx context.Context, runID string) ([]Ref, error)

	// Close releases backend resources. Operations after Close fail with
	// errors.ErrStoreClosed.
	Close() error
}
