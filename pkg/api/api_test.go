package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/censor"
	"bookstories/pkg/logger"
	"bookstories/pkg/models"
	"bookstories/pkg/storage/memdb"
)

var (
	testPostID = uuid.FromStringOrNil("b1e7a0f2-4d3c-4a6b-9f8e-2c1d0e9f8a7b")
	testAuthor = models.Author{ID: uuid.FromStringOrNil("c2f8b1a3-5e4d-4b7c-8a9f-3d2e1f0a9b8c"), Name: "Bob"}
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func newTestAPI(t *testing.T) (*API, *memdb.Store) {
	t.Helper()

	c := censor.New()
	if err := c.LoadFromJSON(filepath.Join("..", "censor", "test_data", "words.json")); err != nil {
		t.Fatalf("failed to load words: %v", err)
	}
	db := memdb.New()

	return New("comments", db, c, nil), db
}

func do(t *testing.T, api *API, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var b bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&b).Encode(body); err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &b)
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	return rr
}

func addComment(t *testing.T, db *memdb.Store, parentID uuid.UUID, text string, published time.Time) models.Comment {
	t.Helper()
	c, err := db.CreateComment(context.Background(), models.Comment{
		PostID:    testPostID,
		ParentID:  parentID,
		Author:    testAuthor,
		Text:      text,
		Published: published,
	})
	if err != nil {
		t.Fatalf("failed to add comment: %v", err)
	}
	return c
}

func TestAPI_commentsHandler(t *testing.T) {
	api, db := newTestAPI(t)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	var roots []models.Comment
	for i := 0; i < 5; i++ {
		roots = append(roots, addComment(t, db, uuid.Nil, "root", base.Add(time.Duration(i)*time.Hour)))
	}
	reply := addComment(t, db, roots[3].ID, "reply", base.Add(10*time.Hour))

	rr := do(t, api, http.MethodGet, "/comments?post_id="+testPostID.String()+"&page=1&limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}

	var got models.CommentsPage
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}

	wantPagination := models.Pagination{TotalPages: 3, CurrentPage: 1, Limit: 2}
	if got.Pagination != wantPagination {
		t.Errorf("want pagination %+v, got %+v", wantPagination, got.Pagination)
	}
	if len(got.Comments) != 2 {
		t.Fatalf("want 2 comments, got %d", len(got.Comments))
	}
	if got.Comments[0].ID != roots[4].ID || got.Comments[1].ID != roots[3].ID {
		t.Errorf("want newest roots first, got %v, %v", got.Comments[0].ID, got.Comments[1].ID)
	}
	if len(got.Comments[1].Replies) != 1 || got.Comments[1].Replies[0].ID != reply.ID {
		t.Errorf("want reply %v nested under its root, got %+v", reply.ID, got.Comments[1].Replies)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("want JSON content type, got %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("want generated X-Request-Id header")
	}
}

func TestAPI_commentsHandlerBadRequest(t *testing.T) {
	api, _ := newTestAPI(t)
	post := "post_id=" + testPostID.String()

	tests := []struct {
		name   string
		target string
	}{
		{"missing post_id", "/comments"},
		{"invalid post_id", "/comments?post_id=42"},
		{"invalid page", "/comments?" + post + "&page=first"},
		{"zero page", "/comments?" + post + "&page=0"},
		{"limit too large", "/comments?" + post + "&limit=101"},
		{"count without post_id", "/comments/count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, api, http.MethodGet, tt.target, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("want status code %v, got status code %v", http.StatusBadRequest, rr.Code)
			}
		})
	}
}

func TestAPI_countHandler(t *testing.T) {
	api, db := newTestAPI(t)

	root := addComment(t, db, uuid.Nil, "root", time.Time{})
	addComment(t, db, root.ID, "reply", time.Time{})

	rr := do(t, api, http.MethodGet, "/comments/count?post_id="+testPostID.String(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}

	var got models.CountResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("want count 2, got %d", got.Count)
	}
}

func TestAPI_createCommentHandler(t *testing.T) {
	api, db := newTestAPI(t)
	root := addComment(t, db, uuid.Nil, "root", time.Time{})
	reply := addComment(t, db, root.ID, "reply", time.Time{})

	tests := []struct {
		name     string
		req      models.CreateRequest
		wantCode int
	}{
		{
			name:     "root",
			req:      models.CreateRequest{PostID: testPostID, Author: testAuthor, Text: "Something interesting"},
			wantCode: http.StatusCreated,
		},
		{
			name:     "reply",
			req:      models.CreateRequest{PostID: testPostID, ParentID: root.ID, Author: testAuthor, Text: "Agreed"},
			wantCode: http.StatusCreated,
		},
		{
			name:     "reply to reply",
			req:      models.CreateRequest{PostID: testPostID, ParentID: reply.ID, Author: testAuthor, Text: "Nested"},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "unknown parent",
			req:      models.CreateRequest{PostID: testPostID, ParentID: uuid.Must(uuid.NewV4()), Author: testAuthor, Text: "Lost"},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "empty text",
			req:      models.CreateRequest{PostID: testPostID, Author: testAuthor, Text: "   "},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing post",
			req:      models.CreateRequest{Author: testAuthor, Text: "Where am I"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "banned word",
			req:      models.CreateRequest{PostID: testPostID, Author: testAuthor, Text: "what a damn book"},
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, api, http.MethodPost, "/comments", tt.req)
			if rr.Code != tt.wantCode {
				t.Fatalf("want status code %v, got status code %v", tt.wantCode, rr.Code)
			}
			if rr.Code != http.StatusCreated {
				return
			}

			var got models.Comment
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("failed to unmarshal response body: %v", err)
			}
			if got.ID == uuid.Nil {
				t.Error("want non-nil comment ID")
			}
			if got.Published.IsZero() {
				t.Error("want non-zero published time")
			}
			if got.Text != tt.req.Text || got.ParentID != tt.req.ParentID || got.Author != tt.req.Author {
				t.Errorf("want comment from request %+v, got %+v", tt.req, got)
			}
		})
	}

	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("want status code %v for invalid JSON, got %v", http.StatusBadRequest, rr.Code)
	}
}

func TestAPI_updateCommentHandler(t *testing.T) {
	api, db := newTestAPI(t)
	root := addComment(t, db, uuid.Nil, "root", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	addComment(t, db, root.ID, "reply", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))

	rr := do(t, api, http.MethodPut, "/comments/"+root.ID.String(), models.UpdateRequest{Text: "edited"})
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}

	var got models.Comment
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if got.Text != "edited" {
		t.Errorf("want text %q, got %q", "edited", got.Text)
	}
	if len(got.Replies) != 0 {
		t.Errorf("want updated comment without replies, got %d", len(got.Replies))
	}

	tests := []struct {
		name     string
		id       uuid.UUID
		text     string
		wantCode int
	}{
		{"unknown comment", uuid.Must(uuid.NewV4()), "text", http.StatusNotFound},
		{"empty text", root.ID, "", http.StatusBadRequest},
		{"banned word", root.ID, "c r a p? no, CRAP", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, api, http.MethodPut, "/comments/"+tt.id.String(), models.UpdateRequest{Text: tt.text})
			if rr.Code != tt.wantCode {
				t.Errorf("want status code %v, got status code %v", tt.wantCode, rr.Code)
			}
		})
	}
}

func TestAPI_deleteCommentHandler(t *testing.T) {
	api, db := newTestAPI(t)
	root := addComment(t, db, uuid.Nil, "root", time.Time{})
	addComment(t, db, root.ID, "reply", time.Time{})

	rr := do(t, api, http.MethodDelete, "/comments/"+root.ID.String(), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("want status code %v, got status code %v", http.StatusNoContent, rr.Code)
	}

	n, err := db.CommentCount(context.Background(), testPostID)
	if err != nil {
		t.Fatalf("unexpected error counting comments: %v", err)
	}
	if n != 0 {
		t.Errorf("want replies deleted with root, got %d comments left", n)
	}

	rr = do(t, api, http.MethodDelete, "/comments/"+root.ID.String(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v, got status code %v", http.StatusNotFound, rr.Code)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestAPI_loggingMiddleware(t *testing.T) {
	w := &fakeWriter{}
	api := New("comments", memdb.New(), nil, logger.NewSink(w, "comments"))

	req := httptest.NewRequest(http.MethodGet, "/comments/count?post_id="+testPostID.String(), nil)
	req.Header.Set("X-Request-Id", "req-1")
	rr := httptest.NewRecorder()
	api.Router().ServeHTTP(rr, req)

	deadline := time.Now().Add(2 * time.Second)
	for len(w.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	msgs := w.messages()
	if len(msgs) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(msgs))
	}

	var entry logger.LogEntry
	if err := json.Unmarshal(msgs[0].Value, &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}
	if entry.RequestID != "req-1" || entry.StatusCode != http.StatusOK || entry.Path != "/comments/count" || entry.Service != "comments" {
		t.Errorf("want entry for served request, got %+v", entry)
	}
}
