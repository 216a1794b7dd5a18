package memdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"bookstories/pkg/models"
	"bookstories/pkg/storage"
	"bookstories/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestStore_SamePublishedKeepsInsertOrder(t *testing.T) {
	db := New()
	postID := uuid.Must(uuid.NewV4())
	published := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		c, err := db.CreateComment(context.Background(), models.Comment{PostID: postID, Text: "same time", Published: published})
		if err != nil {
			t.Fatalf("unexpected error adding comment: %v", err)
		}
		ids = append(ids, c.ID)
	}

	got, _, err := db.Comments(context.Background(), postID, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error retrieving comments: %v", err)
	}
	for i, c := range got {
		if want := ids[len(ids)-1-i]; c.ID != want {
			t.Errorf("want comment %d to be %v, got %v", i, want, c.ID)
		}
	}
}

func TestStore_ConcurrentCreate(t *testing.T) {
	db := New()
	postID := uuid.Must(uuid.NewV4())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.CreateComment(context.Background(), models.Comment{PostID: postID, Text: "hi"}); err != nil {
				t.Errorf("unexpected error adding comment: %v", err)
			}
		}()
	}
	wg.Wait()

	n, err := db.CommentCount(context.Background(), postID)
	if err != nil {
		t.Fatalf("unexpected error counting comments: %v", err)
	}
	if n != 20 {
		t.Errorf("want 20 comments, got %d", n)
	}
	if len(db.comments) != 20 {
		t.Errorf("want 20 comments in DB, got %d", len(db.comments))
	}
}
