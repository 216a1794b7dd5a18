package thread

import (
	"context"

	"github.com/gofrs/uuid"

	"bookstories/pkg/models"
)

// Remote is the comments service as seen by the engine. Implementations may block;
// they are always called off the engine's actor.
type Remote interface {
	Comments(ctx context.Context, postID uuid.UUID, page, limit int) (models.CommentsPage, error)
	CommentCount(ctx context.Context, postID uuid.UUID) (int, error)
	CreateComment(ctx context.Context, postID uuid.UUID, text string, parentID uuid.UUID) (models.Comment, error)
	UpdateComment(ctx context.Context, id uuid.UUID, text string) (models.Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
}
