package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookstories/pkg/models"
	"bookstories/pkg/storage"
)

const collName = "comments"

type Storage struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, err
	}

	s := Storage{client: client, dbName: conf.DBName}
	if err := s.createCollection(ctx, collName); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return &s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Close() {
	s.client.Disconnect(context.Background())
}

func (s *Storage) coll() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(collName)
}

// Comments returns one page of root comments of postID, newest first.
//
// Roots are fetched with skip/limit, then the replies of the page are fetched in a
// second query sorted by published ascending and linked to their roots by id.
func (s *Storage) Comments(ctx context.Context, postID uuid.UUID, page, limit int) ([]*models.Comment, int, error) {
	if postID == uuid.Nil {
		return nil, 0, storage.ErrPostIDNotProvided
	}
	page, limit = storage.PageParams(page, limit)

	rootFilter := bson.M{"post_id": postID, "parent_id": uuid.Nil}
	total, err := s.coll().CountDocuments(ctx, rootFilter)
	if err != nil {
		return nil, 0, err
	}
	numPages := storage.NumPages(int(total), limit)

	opts := options.Find().
		SetSort(bson.D{{Key: "published", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.coll().Find(ctx, rootFilter, opts)
	if err != nil {
		return nil, 0, err
	}
	var roots []models.Comment
	if err := cur.All(ctx, &roots); err != nil {
		return nil, 0, err
	}
	if len(roots) == 0 {
		return []*models.Comment{}, numPages, nil
	}

	rootMap := make(map[uuid.UUID]*models.Comment, len(roots))
	rootIDs := make([]uuid.UUID, 0, len(roots))
	out := make([]*models.Comment, 0, len(roots))
	for i := range roots {
		rootMap[roots[i].ID] = &roots[i]
		rootIDs = append(rootIDs, roots[i].ID)
		out = append(out, &roots[i])
	}

	cur, err = s.coll().Find(ctx,
		bson.M{"parent_id": bson.M{"$in": rootIDs}},
		options.Find().SetSort(bson.D{{Key: "published", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, err
	}
	var replies []models.Comment
	if err := cur.All(ctx, &replies); err != nil {
		return nil, 0, err
	}

	for i := range replies {
		if parent, ok := rootMap[replies[i].ParentID]; ok {
			parent.Replies = append(parent.Replies, &replies[i])
		}
	}

	return out, numPages, nil
}

func (s *Storage) CommentCount(ctx context.Context, postID uuid.UUID) (int, error) {
	if postID == uuid.Nil {
		return 0, storage.ErrPostIDNotProvided
	}

	n, err := s.coll().CountDocuments(ctx, bson.M{"post_id": postID})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CreateComment inserts a new comment into the database.
//
// Validates that PostID and text are provided and, if ParentID is set, verifies the
// parent comment is a root of the same post. If the comment's ID or Published
// timestamp are zero values, they are generated here.
func (s *Storage) CreateComment(ctx context.Context, comment models.Comment) (models.Comment, error) {
	if comment.PostID == uuid.Nil {
		return models.Comment{}, storage.ErrPostIDNotProvided
	}
	if strings.TrimSpace(comment.Text) == "" {
		return models.Comment{}, storage.ErrEmptyText
	}

	if comment.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return models.Comment{}, err
		}
		comment.ID = id
	}
	if comment.Published.IsZero() {
		comment.Published = storage.Now()
	}
	comment.Updated = comment.Published
	comment.Replies = nil

	if comment.ParentID != uuid.Nil {
		var parent models.Comment
		err := s.coll().FindOne(ctx, bson.M{"_id": comment.ParentID, "post_id": comment.PostID}).Decode(&parent)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, storage.ErrParentCommentNotFound
		}
		if err != nil {
			return models.Comment{}, err
		}
		if !parent.IsRoot() {
			return models.Comment{}, storage.ErrReplyDepthExceeded
		}
	}

	if _, err := s.coll().InsertOne(ctx, comment); err != nil {
		return models.Comment{}, err
	}

	return comment, nil
}

func (s *Storage) UpdateComment(ctx context.Context, id uuid.UUID, text string) (models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, storage.ErrEmptyText
	}

	var c models.Comment
	err := s.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"text": text, "updated": storage.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Comment{}, storage.ErrCommentNotFound
	}
	if err != nil {
		return models.Comment{}, err
	}

	return c, nil
}

// DeleteComment removes the comment and every reply pointing at it.
func (s *Storage) DeleteComment(ctx context.Context, id uuid.UUID) error {
	res, err := s.coll().DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"_id": id},
		bson.M{"parent_id": id},
	}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrCommentNotFound
	}

	return nil
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Storage) createCollection(ctx context.Context, name string) error {
	collExists, err := collectionExists(ctx, s.client.Database(s.dbName), name)
	if err != nil {
		return err
	}

	if !collExists {
		err := s.client.Database(s.dbName).CreateCollection(ctx, name)
		if err != nil {
			return err
		}
	}

	return nil
}

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("failed to list collection names: %w", err)
	}

	for _, n := range names {
		if n == name {
			return true, nil
		}
	}

	return false, nil
}
