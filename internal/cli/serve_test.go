package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/flowview/pkg/api"
	pkgio "github.com/matzehuels/flowview/pkg/io"
	"github.com/matzehuels/flowview/pkg/session"
)

func TestReload(t *testing.T) {
	c, logs := newTestCLI(t)
	ctx := context.Background()
	_, ds := budgetManager(t)
	srv := api.New(ds, session.NewMemoryStore(), api.WithLogger(c.Logger))
	before := srv.Fingerprint()

	c.reload(ctx, srv, pkgio.Dataset{}, errors.New("unexpected EOF"), false)
	if srv.Fingerprint() != before {
		t.Error("read failure replaced the dataset")
	}
	if !strings.Contains(logs.String(), "keeping previous dataset") {
		t.Errorf("failure not logged:\n%s", logs.String())
	}

	broken := pkgio.Dataset{Nodes: []pkgio.Node{{ID: "a", ParentID: "ghost"}}, Links: []pkgio.Link{}}
	c.reload(ctx, srv, broken, nil, true)
	if srv.Fingerprint() != before {
		t.Error("strict reload accepted an invalid dataset")
	}

	changed := ds
	changed.Nodes = append(append([]pkgio.Node{}, ds.Nodes...), pkgio.Node{ID: "bonus"})
	c.reload(ctx, srv, changed, nil, false)
	if srv.Fingerprint() != pkgio.Fingerprint(changed) {
		t.Error("reload did not swap in the changed dataset")
	}
}

func TestCleanupLoopStopsOnCancel(t *testing.T) {
	c, _ := newTestCLI(t)
	_, ds := budgetManager(t)
	srv := api.New(ds, session.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.cleanupLoop(ctx, srv, time.Millisecond) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cleanupLoop() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cleanupLoop did not stop")
	}
}

func TestCleanupLoopEvictsExpiredSessions(t *testing.T) {
	c, _ := newTestCLI(t)
	_, ds := budgetManager(t)
	srv := api.New(ds, session.NewMemoryStore(), api.WithTTL(time.Millisecond))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /sessions status = %d", rec.Code)
	}
	if srv.Sessions() != 1 {
		t.Fatalf("Sessions() = %d, want 1", srv.Sessions())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.cleanupLoop(ctx, srv, time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for srv.Sessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired session still held after cleanup")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServeRejectsMissingDataset(t *testing.T) {
	c, _ := newTestCLI(t)
	if _, err := execute(t, c, "serve", "/nonexistent/budget.json"); err == nil {
		t.Error("serve should fail for a missing dataset")
	}
}
