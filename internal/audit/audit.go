// Package audit persists terminal answers to Postgres: one parent row per
// answer plus its invocation trace as child rows. Failed answers are stored
// with whatever partial trace they collected, so a reviewer can always see
// which adapters ran and with exactly which requests.
//
// The store is append-only from the router's side. Record writes one answer
// atomically; Recent and Get read it back for the HTTP and CLI surfaces.
package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/showroomlabs/showroom/internal/router"
)

// ErrNotFound indicates the requested answer does not exist. Check with
// errors.Is.
var ErrNotFound = errors.New("answer not found")

// Listing bounds for Recent.
const (
	// DefaultRecentLimit applies when a caller asks for fewer than 1.
	DefaultRecentLimit = 20
	// MaxRecentLimit caps one listing page.
	MaxRecentLimit = 200
)

// Summary is the listing shape of a persisted answer: the parent row
// without answer text or trace. Get returns the full record.
type Summary struct {
	ID          uuid.UUID     `json:"id"`
	Question    string        `json:"question"`
	State       router.State  `json:"state"`
	Reason      router.Reason `json:"reason,omitempty"`
	ToolBacked  bool          `json:"tool_backed"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Duration is the wall time the recorded question took.
func (s Summary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.CreatedAt)
}
