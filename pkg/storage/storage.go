// Package storage defines the comment store used by the comments service.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"bookstories/pkg/models"
)

const DefaultLimit = 10

var (
	ErrConnectDB       = fmt.Errorf("unable to establish DB connection")
	ErrDBNotResponding = fmt.Errorf("DB not responding")

	ErrPostIDNotProvided     = fmt.Errorf("postID not provided")
	ErrParentCommentNotFound = fmt.Errorf("parent comment not found")
	ErrCommentNotFound       = fmt.Errorf("comment not found")
	ErrReplyDepthExceeded    = fmt.Errorf("replies to replies are not allowed")
	ErrEmptyText             = fmt.Errorf("comment text is empty")
)

// Storage keeps the comments of every book story. Replies only ever target root
// comments.
type Storage interface {
	// Comments returns one page of root comments of a post, newest first, each
	// with its replies oldest first, and the number of pages available.
	Comments(ctx context.Context, postID uuid.UUID, page, limit int) ([]*models.Comment, int, error)
	// CommentCount counts roots and replies of a post.
	CommentCount(ctx context.Context, postID uuid.UUID) (int, error)
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	// UpdateComment changes the text of a comment. The result carries no replies.
	UpdateComment(ctx context.Context, id uuid.UUID, text string) (models.Comment, error)
	// DeleteComment removes a comment together with its replies.
	DeleteComment(ctx context.Context, id uuid.UUID) error
	Close()
}

// PageParams returns page and limit with defaults applied.
func PageParams(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return page, limit
}

func NumPages(total, limit int) int {
	return (total + limit - 1) / limit
}

// Now is the timestamp given to new and updated comments. Stores keep
// millisecond precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
