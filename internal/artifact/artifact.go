// Package artifact persists task outputs and serves them to dependent tasks.
//
// The store is write-once: the first Put for a (run ID, task ID) key wins and
// every later Put fails with *errors.AlreadyExistsError. A reader never
// observes a partially written artifact; once a Get succeeds the bytes are
// final. Those two properties together let dependents read concurrently
// without any locking.
//
// Two backends implement the Store contract: a filesystem store that lays
// artifacts out by phase for easy inspection, and an embedded Badger store
// for runs where many small artifacts make one-file-per-artifact wasteful.
package artifact

import (
	"time"
)

// Artifact is the immutable output of a single task.
type Artifact struct {
	// TaskID is the producing task. Together with the run ID it forms the
	// storage key.
	TaskID string `json:"task_id"`
	// Phase is the phase the producing task ran in.
	Phase int `json:"phase"`
	// ContentType describes the payload (MIME style, informational).
	ContentType string `json:"content_type,omitempty"`
	// Payload is the opaque output bytes.
	Payload []byte `json:"payload,omitempty"`
	// CreatedAt is when the artifact was stored.
	CreatedAt time.Time `json:"created_at"`
}

// Ref is lightweight artifact metadata returned by List. It carries
// everything needed to display or look up an artifact without loading
// payloads.
type Ref struct {
	TaskID      string    `json:"task_id"`
	Phase       int       `json:"phase"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int       `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ref returns the artifact's metadata.
func (a *Artifact) Ref() Ref {
	return Ref{
		TaskID:      a.TaskID,
		Phase:       a.Phase,
		ContentType: a.ContentType,
		SizeBytes:   len(a.Payload),
		CreatedAt:   a.CreatedAt,
	}
}
