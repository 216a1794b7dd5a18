// Package storagetest holds the behaviour every storage.Storage must show. Store
// packages run it from their own tests.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"bookstories/pkg/models"
	"bookstories/pkg/storage"
)

var TestAuthor = models.Author{
	ID:   uuid.FromStringOrNil("6f0c2b8e-52a4-4c8e-9a55-0e1b9d7a4c21"),
	Name: "Alice",
}

// Run runs the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db storage.Storage)
	}{
		{"CreateComment", testCreateComment},
		{"CreateCommentErrors", testCreateCommentErrors},
		{"Comments", testComments},
		{"CommentsPagination", testCommentsPagination},
		{"CommentCount", testCommentCount},
		{"UpdateComment", testUpdateComment},
		{"DeleteComment", testDeleteComment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newComment(postID, parentID uuid.UUID, text string, published time.Time) models.Comment {
	return models.Comment{
		ID:        uuid.Must(uuid.NewV4()),
		PostID:    postID,
		ParentID:  parentID,
		Author:    TestAuthor,
		Text:      text,
		Published: published,
	}
}

func mustCreate(t *testing.T, db storage.Storage, c models.Comment) models.Comment {
	t.Helper()
	got, err := db.CreateComment(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error adding comment %v: %v", c.ID, err)
	}
	return got
}

func testCreateComment(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	postID := uuid.Must(uuid.NewV4())

	root := newComment(postID, uuid.Nil, "This is a test comment", time.Date(2025, 1, 12, 10, 22, 13, 0, time.UTC))
	want := root
	want.Updated = want.Published

	got := mustCreate(t, db, root)
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want comment\n%+v\n\ngot comment\n%+v", want, got)
	}

	generated, err := db.CreateComment(ctx, models.Comment{PostID: postID, ParentID: root.ID, Author: TestAuthor, Text: "reply"})
	if err != nil {
		t.Fatalf("unexpected error adding reply: %v", err)
	}
	if generated.ID == uuid.Nil {
		t.Error("want generated comment ID")
	}
	if generated.Published.IsZero() || !generated.Updated.Equal(generated.Published) {
		t.Errorf("want published = updated and set, got %v / %v", generated.Published, generated.Updated)
	}

	page, _, err := db.Comments(ctx, postID, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error retrieving comments: %v", err)
	}
	if len(page) != 1 || len(page[0].Replies) != 1 || page[0].Replies[0].ID != generated.ID {
		t.Errorf("want stored root with one reply, got %+v", page)
	}
}

func testCreateCommentErrors(t *testing.T, db storage.Storage) {
	postID := uuid.Must(uuid.NewV4())
	root := mustCreate(t, db, newComment(postID, uuid.Nil, "root", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	reply := mustCreate(t, db, newComment(postID, root.ID, "reply", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))

	tests := []struct {
		name    string
		comment models.Comment
		wantErr error
	}{
		{
			name:    "no post",
			comment: newComment(uuid.Nil, uuid.Nil, "text", time.Time{}),
			wantErr: storage.ErrPostIDNotProvided,
		},
		{
			name:    "empty text",
			comment: newComment(postID, uuid.Nil, " \n", time.Time{}),
			wantErr: storage.ErrEmptyText,
		},
		{
			name:    "unknown parent",
			comment: newComment(postID, uuid.Must(uuid.NewV4()), "text", time.Time{}),
			wantErr: storage.ErrParentCommentNotFound,
		},
		{
			name:    "parent in another post",
			comment: newComment(uuid.Must(uuid.NewV4()), root.ID, "text", time.Time{}),
			wantErr: storage.ErrParentCommentNotFound,
		},
		{
			name:    "reply to reply",
			comment: newComment(postID, reply.ID, "text", time.Time{}),
			wantErr: storage.ErrReplyDepthExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.CreateComment(context.Background(), tt.comment)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func testComments(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	postID := uuid.Must(uuid.NewV4())

	// Thread structure:
	// older
	// ├─ reply1
	// └─ reply2
	// newer
	older := mustCreate(t, db, newComment(postID, uuid.Nil, "Older root", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)))
	newer := mustCreate(t, db, newComment(postID, uuid.Nil, "Newer root", time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)))
	reply2 := mustCreate(t, db, newComment(postID, older.ID, "Second reply", time.Date(2025, 5, 1, 10, 7, 0, 0, time.UTC)))
	reply1 := mustCreate(t, db, newComment(postID, older.ID, "First reply", time.Date(2025, 5, 1, 10, 5, 0, 0, time.UTC)))
	mustCreate(t, db, newComment(uuid.Must(uuid.NewV4()), uuid.Nil, "Other post", time.Date(2025, 5, 3, 10, 0, 0, 0, time.UTC)))

	olderWant := older
	olderWant.Replies = []*models.Comment{&reply1, &reply2}
	want := []*models.Comment{&newer, &olderWant}

	got, numPages, err := db.Comments(ctx, postID, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error retrieving comments: %v", err)
	}
	if numPages != 1 {
		t.Errorf("want 1 page, got %d", numPages)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("want comments\n%+v\n\ngot comments\n%+v", want, got)
	}

	if _, _, err := db.Comments(ctx, uuid.Nil, 1, 10); !errors.Is(err, storage.ErrPostIDNotProvided) {
		t.Errorf("want error %v, got %v", storage.ErrPostIDNotProvided, err)
	}

	empty, numPages, err := db.Comments(ctx, uuid.Must(uuid.NewV4()), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error retrieving empty thread: %v", err)
	}
	if len(empty) != 0 || numPages != 0 {
		t.Errorf("want empty thread with 0 pages, got %d comments, %d pages", len(empty), numPages)
	}
}

func testCommentsPagination(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	postID := uuid.Must(uuid.NewV4())

	// Roots from oldest to newest.
	var roots []models.Comment
	for i := 0; i < 7; i++ {
		roots = append(roots, mustCreate(t, db, newComment(postID, uuid.Nil, "root", time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC))))
	}

	tests := []struct {
		name         string
		page         int
		limit        int
		wantIDs      []uuid.UUID
		wantNumPages int
	}{
		{name: "first page", page: 1, limit: 3, wantIDs: []uuid.UUID{roots[6].ID, roots[5].ID, roots[4].ID}, wantNumPages: 3},
		{name: "last page", page: 3, limit: 3, wantIDs: []uuid.UUID{roots[0].ID}, wantNumPages: 3},
		{name: "page out of range", page: 4, limit: 3, wantIDs: []uuid.UUID{}, wantNumPages: 3},
		{name: "defaults", page: 0, limit: 0, wantIDs: []uuid.UUID{roots[6].ID, roots[5].ID, roots[4].ID, roots[3].ID, roots[2].ID, roots[1].ID, roots[0].ID}, wantNumPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, numPages, err := db.Comments(ctx, postID, tt.page, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error retrieving comments: %v", err)
			}
			gotIDs := make([]uuid.UUID, 0, len(got))
			for _, c := range got {
				gotIDs = append(gotIDs, c.ID)
			}
			if !reflect.DeepEqual(tt.wantIDs, gotIDs) {
				t.Errorf("want ids %v, got ids %v", tt.wantIDs, gotIDs)
			}
			if numPages != tt.wantNumPages {
				t.Errorf("want %d pages, got %d", tt.wantNumPages, numPages)
			}
		})
	}
}

func testCommentCount(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	postID := uuid.Must(uuid.NewV4())

	root := mustCreate(t, db, newComment(postID, uuid.Nil, "root", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	mustCreate(t, db, newComment(postID, uuid.Nil, "root", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
	mustCreate(t, db, newComment(postID, root.ID, "reply", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)))
	mustCreate(t, db, newComment(uuid.Must(uuid.NewV4()), uuid.Nil, "elsewhere", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	got, err := db.CommentCount(ctx, postID)
	if err != nil {
		t.Fatalf("unexpected error counting comments: %v", err)
	}
	if got != 3 {
		t.Errorf("want count 3, got %d", got)
	}
}

func testUpdateComment(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	postID := uuid.Must(uuid.NewV4())
	published := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	root := mustCreate(t, db, newComment(postID, uuid.Nil, "root", published))
	mustCreate(t, db, newComment(postID, root.ID, "reply", published.Add(time.Hour)))

	got, err := db.UpdateComment(ctx, root.ID, "edited")
	if err != nil {
		t.Fatalf("unexpected error updating comment: %v", err)
	}
	if got.Text != "edited" {
		t.Errorf("want text %q, got %q", "edited", got.Text)
	}
	if !got.Published.Equal(published) {
		t.Errorf("want published %v kept, got %v", published, got.Published)
	}
	if !got.Updated.After(published) {
		t.Errorf("want updated after %v, got %v", published, got.Updated)
	}
	if got.Replies != nil {
		t.Errorf("want update result without replies, got %d", len(got.Replies))
	}

	page, _, err := db.Comments(ctx, postID, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error retrieving comments: %v", err)
	}
	if page[0].Text != "edited" || len(page[0].Replies) != 1 {
		t.Errorf("want stored edit with reply kept, got %+v", page[0])
	}

	if _, err := db.UpdateComment(ctx, root.ID, "  "); !errors.Is(err, storage.ErrEmptyText) {
		t.Errorf("want error %v, got %v", storage.ErrEmptyText, err)
	}
	if _, err := db.UpdateComment(ctx, uuid.Must(uuid.NewV4()), "text"); !errors.Is(err, storage.ErrCommentNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrCommentNotFound, err)
	}
}

func testDeleteComment(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	postID := uuid.Must(uuid.NewV4())
	published := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	root := mustCreate(t, db, newComment(postID, uuid.Nil, "root", published))
	reply1 := mustCreate(t, db, newComment(postID, root.ID, "reply", published.Add(time.Minute)))
	mustCreate(t, db, newComment(postID, root.ID, "reply", published.Add(2*time.Minute)))
	other := mustCreate(t, db, newComment(postID, uuid.Nil, "other", published.Add(time.Hour)))

	if err := db.DeleteComment(ctx, reply1.ID); err != nil {
		t.Fatalf("unexpected error deleting reply: %v", err)
	}
	if n, _ := db.CommentCount(ctx, postID); n != 3 {
		t.Errorf("want count 3 after reply delete, got %d", n)
	}

	if err := db.DeleteComment(ctx, root.ID); err != nil {
		t.Fatalf("unexpected error deleting root: %v", err)
	}
	if n, _ := db.CommentCount(ctx, postID); n != 1 {
		t.Errorf("want replies deleted with their root, got count %d", n)
	}

	page, _, err := db.Comments(ctx, postID, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error retrieving comments: %v", err)
	}
	if len(page) != 1 || page[0].ID != other.ID {
		t.Errorf("want only %v left, got %+v", other.ID, page)
	}

	if err := db.DeleteComment(ctx, root.ID); !errors.Is(err, storage.ErrCommentNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrCommentNotFound, err)
	}
}
