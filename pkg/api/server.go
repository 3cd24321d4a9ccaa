// Package api serves expand/collapse sessions over HTTP.
//
// A [Server] owns one dataset and any number of sessions. Each session has
// its own [hierarchy.Manager]; every request that touches a session holds
// the server's lock, so managers only ever see one writer. Session state is
// persisted to a [session.Store] after every mutation, and managers missing
// from memory (after a restart or a failed save) are rebuilt from the store
// on demand. [Server.Cleanup] evicts managers whose session has expired.
//
// # Routes
//
//	GET    /healthz
//	GET    /dataset
//	POST   /sessions                          body: {"expanded": [...]} (optional)
//	GET    /sessions/{id}
//	POST   /sessions/{id}/expand/{node}
//	POST   /sessions/{id}/collapse/{node}
//	POST   /sessions/{id}/toggle/{node}
//	POST   /sessions/{id}/reset
//	DELETE /sessions/{id}
//
// Session responses carry the session ID, its expanded node IDs and the
// visible view. Expanding or collapsing a node that is unknown or not
// expandable is not an error: the response is 200 with the view unchanged.
// Unknown sessions are 404 with a JSON body {"error": ..., "code": ...}.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
	pkgio "github.com/matzehuels/flowview/pkg/io"
	"github.com/matzehuels/flowview/pkg/observability"
	"github.com/matzehuels/flowview/pkg/session"
)

// Server is the HTTP front for hierarchy managers.
type Server struct {
	mu          sync.Mutex
	dataset     pkgio.Dataset
	fingerprint string
	managers    map[string]*liveSession

	store  session.Store
	logger *log.Logger
	ttl    time.Duration
	router chi.Router
}

// liveSession is a session held in memory. created is the session's
// original creation time, carried into every save.
type liveSession struct {
	m       *hierarchy.Manager
	created time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request logs and manager debug
// output.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTTL sets the session lifetime. Each mutation extends the session by
// ttl. Zero means sessions never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// New creates a server over ds, persisting sessions to store.
func New(ds pkgio.Dataset, store session.Store, opts ...Option) *Server {
	s := &Server{
		dataset:     ds,
		fingerprint: pkgio.Fingerprint(ds),
		managers:    make(map[string]*liveSession),
		store:       store,
		logger:      log.Default(),
		ttl:         session.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/dataset", s.handleDataset)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Post("/expand/{node}", s.handleMutation(opExpand))
			r.Post("/collapse/{node}", s.handleMutation(opCollapse))
			r.Post("/toggle/{node}", s.handleMutation(opToggle))
			r.Post("/reset", s.handleMutation(opReset))
		})
	})
	return r
}

// Fingerprint returns the fingerprint of the dataset being served.
func (s *Server) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

// Reload swaps in a new dataset. Sessions held in memory are rebuilt over
// it with their expansion state carried across; IDs that no longer name an
// expandable node are dropped. Sessions that have left the store are
// evicted instead of rebuilt. Sessions only present in the store start
// collapsed the next time they are used, since their state was recorded
// against the old dataset.
func (s *Server) Reload(ctx context.Context, ds pkgio.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataset = ds
	s.fingerprint = pkgio.Fingerprint(ds)

	var errs []error
	for id, old := range s.managers {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			delete(s.managers, id)
			errs = append(errs, err)
			continue
		}
		if sess == nil {
			delete(s.managers, id)
			continue
		}
		ls := &liveSession{m: s.newManager(), created: sess.CreatedAt}
		ls.m.Restore(old.m.ExpandedIDs())
		if err := s.save(ctx, id, ls); err != nil {
			delete(s.managers, id)
			errs = append(errs, err)
			continue
		}
		s.managers[id] = ls
	}
	s.logger.Info("dataset reloaded",
		"nodes", len(ds.Nodes), "links", len(ds.Links), "sessions", len(s.managers))
	if len(errs) > 0 {
		return ferrors.Wrap(ferrors.ErrCodeInternal, errs[0], "persist %d reloaded sessions", len(errs))
	}
	return nil
}

// Cleanup removes expired sessions from the store and evicts the managers
// of every session the store no longer returns.
func (s *Server) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Cleanup(ctx); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeInternal, err, "clean up sessions")
	}
	var evicted int
	for id := range s.managers {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return ferrors.Wrap(ferrors.ErrCodeInternal, err, "load session %s", id)
		}
		if sess == nil {
			delete(s.managers, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted expired sessions", "evicted", evicted, "sessions", len(s.managers))
	}
	return nil
}

// Sessions returns the number of sessions held in memory.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.managers)
}

func (s *Server) newManager() *hierarchy.Manager {
	return s.dataset.Manager(hierarchy.WithLogger(s.logger))
}

// load returns the live session for id, rebuilding it from the store when
// it is not held in memory. Callers must hold s.mu.
func (s *Server) load(ctx context.Context, id string) (*liveSession, error) {
	if err := ferrors.ValidateID(id); err != nil {
		return nil, err
	}
	sess, err := s.store.Get(ctx, id)
	observability.Store().OnStateLoad(ctx, id, sess != nil, err)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err, "load session %s", id)
	}
	if sess == nil {
		delete(s.managers, id)
		return nil, ferrors.New(ferrors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	if ls, ok := s.managers[id]; ok {
		return ls, nil
	}

	ls := &liveSession{m: s.newManager(), created: sess.CreatedAt}
	if !sess.State.Apply(ls.m, s.fingerprint) {
		s.logger.Debug("discarding session state recorded against another dataset", "session", id)
	}
	s.managers[id] = ls
	return ls, nil
}

// save persists the state of ls and extends the session's lifetime. The
// creation time is kept; a session saved for the first time takes the
// current time. Callers must hold s.mu.
func (s *Server) save(ctx context.Context, id string, ls *liveSession) error {
	sess := session.NewWithID(id, s.fingerprint, s.ttl)
	if ls.created.IsZero() {
		ls.created = sess.CreatedAt
	} else {
		sess.CreatedAt = ls.created
	}
	sess.State = session.Capture(ls.m, s.fingerprint)
	err := s.store.Set(ctx, sess)
	observability.Store().OnStateSave(ctx, id, len(sess.State.Expanded), err)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeInternal, err, "save session %s", id)
	}
	return nil
}
