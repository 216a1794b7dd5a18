package postgres

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bookstories/pkg/models"
	"bookstories/pkg/storage"
)

//go:embed schema.sql
var schema string

const commentColumns = `id, post_id, parent_id, author_id, author_name, author_avatar, text, published, updated`

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

// Init creates the comments table and its indexes when missing.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// Comments returns one page of root comments of postID ordered by published date
// descending, each with its replies ordered by published date ascending, and the
// total number of pages of roots.
func (s *Store) Comments(ctx context.Context, postID uuid.UUID, page, limit int) ([]*models.Comment, int, error) {
	if postID == uuid.Nil {
		return nil, 0, storage.ErrPostIDNotProvided
	}
	page, limit = storage.PageParams(page, limit)

	var totalRoots int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(id) FROM comments WHERE post_id = $1 AND parent_id = $2
	`,
		postID,
		uuid.Nil,
	).Scan(&totalRoots)
	if err != nil {
		return nil, 0, err
	}
	numPages := storage.NumPages(totalRoots, limit)

	rows, err := s.db.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE post_id = $1 AND parent_id = $2
		ORDER BY published DESC, id DESC
		LIMIT $3 OFFSET $4
	`,
		postID,
		uuid.Nil,
		limit,
		(page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	roots, err := scanComments(rows)
	if err != nil {
		return nil, 0, err
	}
	if len(roots) == 0 {
		return []*models.Comment{}, numPages, nil
	}

	rootMap := make(map[uuid.UUID]*models.Comment, len(roots))
	rootIDs := make([]string, 0, len(roots))
	for _, r := range roots {
		rootMap[r.ID] = r
		rootIDs = append(rootIDs, r.ID.String())
	}

	rows, err = s.db.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE parent_id = ANY($1::uuid[])
		ORDER BY published ASC, id ASC
	`,
		rootIDs,
	)
	if err != nil {
		return nil, 0, err
	}
	replies, err := scanComments(rows)
	if err != nil {
		return nil, 0, err
	}
	for _, r := range replies {
		if parent, ok := rootMap[r.ParentID]; ok {
			parent.Replies = append(parent.Replies, r)
		}
	}

	return roots, numPages, nil
}

func (s *Store) CommentCount(ctx context.Context, postID uuid.UUID) (n int, err error) {
	if postID == uuid.Nil {
		return 0, storage.ErrPostIDNotProvided
	}

	err = s.db.QueryRow(ctx, `SELECT COUNT(id) FROM comments WHERE post_id = $1`, postID).Scan(&n)
	return
}

// CreateComment inserts a comment. ID and Published are generated when zero. A
// reply must point at a root of the same post.
func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
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
	c.Published = c.Published.UTC()
	c.Updated = c.Published
	c.Replies = nil

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Comment{}, err
	}
	defer tx.Rollback(ctx)

	if c.ParentID != uuid.Nil {
		var grandParent uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT parent_id FROM comments WHERE id = $1 AND post_id = $2
		`,
			c.ParentID,
			c.PostID,
		).Scan(&grandParent)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, storage.ErrParentCommentNotFound
		}
		if err != nil {
			return models.Comment{}, err
		}
		if grandParent != uuid.Nil {
			return models.Comment{}, storage.ErrReplyDepthExceeded
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		c.ID,
		c.PostID,
		c.ParentID,
		c.Author.ID,
		c.Author.Name,
		c.Author.AvatarURL,
		c.Text,
		c.Published,
		c.Updated,
	)
	if err != nil {
		return models.Comment{}, err
	}

	return c, tx.Commit(ctx)
}

func (s *Store) UpdateComment(ctx context.Context, id uuid.UUID, text string) (models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, storage.ErrEmptyText
	}

	row := s.db.QueryRow(ctx, `
		UPDATE comments SET text = $2, updated = $3
		WHERE id = $1
		RETURNING `+commentColumns,
		id,
		text,
		storage.Now(),
	)
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	if err != nil {
		return models.Comment{}, err
	}

	return *c, nil
}

// DeleteComment removes the comment and its replies.
func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1 OR parent_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCommentNotFound
	}

	return nil
}

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.ParentID,
		&c.Author.ID,
		&c.Author.Name,
		&c.Author.AvatarURL,
		&c.Text,
		&c.Published,
		&c.Updated,
	)
	if err != nil {
		return nil, err
	}
	c.Published = c.Published.UTC()
	c.Updated = c.Updated.UTC()

	return &c, nil
}

func scanComments(rows pgx.Rows) ([]*models.Comment, error) {
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}
