// Package session persists expansion state for hierarchy managers.
//
// A [Session] records which nodes of a dataset are expanded, tagged with
// the dataset's fingerprint so that state recorded against one dataset is
// never replayed onto another. Sessions are kept in a [Store]:
//   - memory: in-process map for tests and single-instance servers
//   - file: one JSON file per session, for the CLI
//   - sqlite: a single local database file
//   - redis: shared, TTL-native storage for multi-instance servers
//   - mongo: document storage with a TTL index
//
// # Usage
//
//	store, err := session.Open(ctx, session.Config{Backend: "file"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	sess := session.New(fingerprint, session.DefaultTTL)
//	sess.State = session.Capture(m, fingerprint)
//	if err := store.Set(ctx, sess); err != nil {
//	    return err
//	}
//
//	sess, err = store.Get(ctx, sess.ID)
//	if err != nil {
//	    return err
//	}
//	if sess != nil {
//	    sess.State.Apply(m, fingerprint)
//	}
package session

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
)

// StateVersion is the current [State] layout. States with another version
// are ignored on load.
const StateVersion = 1

// DefaultTTL is the default session duration.
const DefaultTTL = 24 * time.Hour

// State is the persisted expansion state of one manager.
type State struct {
	Version  int      `json:"version" bson:"version"`
	Dataset  string   `json:"dataset" bson:"dataset"`   // Fingerprint of the dataset
	Expanded []string `json:"expanded" bson:"expanded"` // Expanded node IDs in dataset order
}

// Capture records the expansion state of m against the given dataset
// fingerprint.
func Capture(m *hierarchy.Manager, fingerprint string) State {
	expanded := m.ExpandedIDs()
	if expanded == nil {
		expanded = []string{}
	}
	return State{Version: StateVersion, Dataset: fingerprint, Expanded: expanded}
}

// Apply restores the state onto m if it was recorded against the same
// dataset and layout version. IDs that no longer name an expandable node
// are ignored. Apply reports whether the state was applied.
func (s State) Apply(m *hierarchy.Manager, fingerprint string) bool {
	if s.Version != StateVersion || s.Dataset != fingerprint {
		return false
	}
	m.Restore(s.Expanded)
	return true
}

// Session is a stored expansion state with an identity and a lifetime.
type Session struct {
	ID        string    `json:"id" bson:"_id"`
	State     State     `json:"state" bson:"state"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at,omitempty"`
}

// New creates a session with a random UUID for the given dataset
// fingerprint. A ttl of zero or less creates a session that never expires.
func New(fingerprint string, ttl time.Duration) *Session {
	return NewWithID(uuid.NewString(), fingerprint, ttl)
}

// NewWithID is like [New] but uses a caller-chosen ID, such as the dataset
// fingerprint for per-file CLI state.
func NewWithID(id, fingerprint string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		State:     State{Version: StateVersion, Dataset: fingerprint, Expanded: []string{}},
		CreatedAt: now,
	}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}

// IsExpired returns true if the session has an expiry in the past.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session, replacing any session with the same ID.
	Set(ctx context.Context, sess *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions. May be a no-op for backends with
	// native expiry.
	Cleanup(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// checkID rejects IDs that are empty, oversized, or would escape a
// directory when used as a file name.
func checkID(id string) error {
	if err := ferrors.ValidateID(id); err != nil {
		return err
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return ferrors.New(ferrors.ErrCodeInvalidInput, "invalid session id %q", id)
	}
	return nil
}
