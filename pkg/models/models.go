package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Author is the public profile of a comment writer. It is filled by the service
// and never changed by clients.
type Author struct {
	ID        uuid.UUID `bson:"id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	AvatarURL string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}

// Comment is either a root comment of a book story (ParentID is uuid.Nil) or a reply
// to a root. Replies never carry replies of their own.
type Comment struct {
	ID        uuid.UUID  `bson:"_id" json:"id"`
	PostID    uuid.UUID  `bson:"post_id" json:"post_id"`
	ParentID  uuid.UUID  `bson:"parent_id" json:"parent_id"`
	Author    Author     `bson:"author" json:"author"`
	Text      string     `bson:"text" json:"text"`
	Published time.Time  `bson:"published" json:"published"`
	Updated   time.Time  `bson:"updated" json:"updated"`
	Replies   []*Comment `bson:"-" json:"replies,omitempty"`
}

func (c *Comment) IsRoot() bool {
	return c.ParentID == uuid.Nil
}

// Clone returns a deep copy of the comment including its replies.
func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	cp := *c
	if len(c.Replies) > 0 {
		cp.Replies = make([]*Comment, len(c.Replies))
		for i, r := range c.Replies {
			cp.Replies[i] = r.Clone()
		}
	} else {
		cp.Replies = nil
	}

	return &cp
}

type Pagination struct {
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Limit       int `json:"limit"`
}

type CommentsPage struct {
	Comments   []*Comment `json:"comments"`
	Pagination Pagination `json:"pagination"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type CreateRequest struct {
	PostID   uuid.UUID `json:"post_id"`
	ParentID uuid.UUID `json:"parent_id"`
	Author   Author    `json:"author"`
	Text     string    `json:"text"`
}

type UpdateRequest struct {
	Text string `json:"text"`
}
