package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gofrs/uuid"

	"bookstories/pkg/remote"
	"bookstories/pkg/thread"
)

// Drives the thread engine against the real API over HTTP.
func TestThreadEngineAgainstAPI(t *testing.T) {
	api, db := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		addComment(t, db, uuid.Nil, "root", base.Add(time.Duration(i)*time.Minute))
	}

	client, err := remote.New(remote.Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Author: testAuthor})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	engine := thread.New(actor.NewActorSystem(), client, testPostID, thread.Options{PageSize: 5, ReplyTimeout: 10 * time.Second})
	defer engine.Stop()
	ctx := context.Background()

	state := func() thread.State {
		t.Helper()
		st, err := engine.State()
		if err != nil {
			t.Fatalf("failed to read engine state: %v", err)
		}
		return st
	}
	waitTotal := func(want int) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for state().TotalCount != want && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if got := state().TotalCount; got != want {
			t.Fatalf("want total count %d, got %d", want, got)
		}
	}

	if !engine.Refresh(ctx) {
		t.Fatalf("want first page loaded, last error %v", state().LastError)
	}
	waitTotal(12)

	for engine.LoadNextPage(ctx) {
	}
	st := state()
	if len(st.Comments) != 12 || !st.LastPage {
		t.Fatalf("want all 12 roots and last page, got %d roots, last page %v", len(st.Comments), st.LastPage)
	}

	created := engine.Create(ctx, "A fresh take", uuid.Nil)
	if created == nil {
		t.Fatalf("want root created, last error %v", state().LastError)
	}
	target := state().Comments[3]
	if engine.Create(ctx, "Agreed", target.ID) == nil {
		t.Fatalf("want reply created, last error %v", state().LastError)
	}

	st = state()
	if st.Comments[0].ID != created.ID || st.TotalCount != 14 {
		t.Errorf("want new root first and total 14, got %v and %d", st.Comments[0].ID, st.TotalCount)
	}
	if len(st.Comments[3].Replies) != 1 {
		t.Fatalf("want 1 reply under %v, got %d", target.ID, len(st.Comments[3].Replies))
	}

	if engine.Update(ctx, target.ID, "Edited take") == nil {
		t.Fatalf("want comment updated, last error %v", state().LastError)
	}
	st = state()
	if st.Comments[3].Text != "Edited take" || len(st.Comments[3].Replies) != 1 {
		t.Errorf("want edited text with reply kept, got %q with %d replies", st.Comments[3].Text, len(st.Comments[3].Replies))
	}

	if engine.Create(ctx, "what a damn ending", uuid.Nil) != nil {
		t.Error("want censored comment refused")
	}
	if st := state(); st.LastError == nil || st.LastError.Code != thread.ErrRejected {
		t.Errorf("want last error %s, got %v", thread.ErrRejected, st.LastError)
	}

	if !engine.Delete(ctx, target.ID) {
		t.Fatalf("want comment deleted, last error %v", state().LastError)
	}
	st = state()
	if len(st.Comments) != 12 || st.TotalCount != 13 {
		t.Errorf("want 12 roots and total 13 after delete, got %d and %d", len(st.Comments), st.TotalCount)
	}

	if engine.Update(ctx, target.ID, "too late") != nil {
		t.Error("want update of deleted comment to fail")
	}
	if st := state(); st.LastError == nil || st.LastError.Code != thread.ErrNotFound {
		t.Errorf("want last error %s, got %v", thread.ErrNotFound, st.LastError)
	}

	// The server removed the reply too, so the refreshed total is one lower.
	if !engine.Refresh(ctx) {
		t.Fatalf("want refresh, last error %v", state().LastError)
	}
	waitTotal(12)
	if st := state(); len(st.Comments) != 5 || st.Page != 2 {
		t.Errorf("want first page after refresh, got %d roots on page %d", len(st.Comments), st.Page)
	}
}
