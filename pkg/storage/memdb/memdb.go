package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/uuid"

	"bookstories/pkg/models"
	"bookstories/pkg/storage"
)

type entry struct {
	comment models.Comment
	seq     uint64
}

type Store struct {
	mu       sync.Mutex
	seq      uint64
	comments map[uuid.UUID]entry
}

func New() *Store {
	db := Store{
		comments: make(map[uuid.UUID]entry),
	}

	return &db
}

func (db *Store) Close() {}

func (db *Store) Comments(ctx context.Context, postID uuid.UUID, page, limit int) ([]*models.Comment, int, error) {
	if postID == uuid.Nil {
		return nil, 0, storage.ErrPostIDNotProvided
	}
	page, limit = storage.PageParams(page, limit)

	db.mu.Lock()
	var roots []entry
	replies := make(map[uuid.UUID][]entry)
	for _, e := range db.comments {
		if e.comment.PostID != postID {
			continue
		}
		if e.comment.IsRoot() {
			roots = append(roots, e)
		} else {
			replies[e.comment.ParentID] = append(replies[e.comment.ParentID], e)
		}
	}
	db.mu.Unlock()

	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].comment.Published.Equal(roots[j].comment.Published) {
			return roots[i].comment.Published.After(roots[j].comment.Published)
		}
		return roots[i].seq > roots[j].seq
	})

	numPages := storage.NumPages(len(roots), limit)
	start := (page - 1) * limit
	if start >= len(roots) {
		return []*models.Comment{}, numPages, nil
	}
	end := start + limit
	if end > len(roots) {
		end = len(roots)
	}

	out := make([]*models.Comment, 0, end-start)
	for _, r := range roots[start:end] {
		c := r.comment
		rs := replies[c.ID]
		sort.Slice(rs, func(i, j int) bool {
			if !rs[i].comment.Published.Equal(rs[j].comment.Published) {
				return rs[i].comment.Published.Before(rs[j].comment.Published)
			}
			return rs[i].seq < rs[j].seq
		})
		for _, reply := range rs {
			reply := reply.comment
			c.Replies = append(c.Replies, &reply)
		}
		out = append(out, &c)
	}

	return out, numPages, nil
}

func (db *Store) CommentCount(ctx context.Context, postID uuid.UUID) (int, error) {
	if postID == uuid.Nil {
		return 0, storage.ErrPostIDNotProvided
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, e := range db.comments {
		if e.comment.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (db *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.PostID == uuid.Nil {
		return models.Comment{}, storage.ErrPostIDNotProvided
	}
	if strings.TrimSpace(c.Text) == "" {
		return models.Comment{}, storage.ErrEmptyText
	}

	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return models.Comment{}, err
		}
		c.ID = id
	}
	if c.Published.IsZero() {
		c.Published = storage.Now()
	}
	c.Updated = c.Published
	c.Replies = nil

	db.mu.Lock()
	defer db.mu.Unlock()

	if c.ParentID != uuid.Nil {
		parent, ok := db.comments[c.ParentID]
		if !ok || parent.comment.PostID != c.PostID {
			return models.Comment{}, storage.ErrParentCommentNotFound
		}
		if !parent.comment.IsRoot() {
			return models.Comment{}, storage.ErrReplyDepthExceeded
		}
	}

	db.seq++
	db.comments[c.ID] = entry{comment: c, seq: db.seq}

	return c, nil
}

func (db *Store) UpdateComment(ctx context.Context, id uuid.UUID, text string) (models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, storage.ErrEmptyText
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.comments[id]
	if !ok {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	e.comment.Text = text
	e.comment.Updated = storage.Now()
	db.comments[id] = e

	return e.comment, nil
}

func (db *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.comments[id]; !ok {
		return storage.ErrCommentNotFound
	}
	delete(db.comments, id)
	for k, e := range db.comments {
		if e.comment.ParentID == id {
			delete(db.comments, k)
		}
	}

	return nil
}
