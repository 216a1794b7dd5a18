// Package remote is the HTTP client of the comments service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/models"
)

// DefaultTimeout bounds a service call when Config.Timeout is not set.
const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string        `toml:"server"`
	Timeout time.Duration `toml:"timeout"`
	// Author is sent with every created comment.
	Author models.Author `toml:"author"`
}

// RequestTimeout is the timeout applied to every service call.
func (c Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// ErrNotFound is returned when the service answers 404.
type ErrNotFound struct {
	msg string
}

func (e *ErrNotFound) Error() string {
	return e.msg
}

func (e *ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("comments service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("comments service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

type Client struct {
	base   *url.URL
	client *http.Client
	author models.Author
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid service url %q: scheme and host required", cfg.BaseURL)
	}

	return &Client{
		base:   base,
		client: &http.Client{Timeout: cfg.RequestTimeout()},
		author: cfg.Author,
	}, nil
}

func (c *Client) Comments(ctx context.Context, postID uuid.UUID, page, limit int) (models.CommentsPage, error) {
	u := c.base.JoinPath("comments")
	values := u.Query()
	values.Set("post_id", postID.String())
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(limit))
	u.RawQuery = values.Encode()

	var p models.CommentsPage
	if err := c.do(ctx, http.MethodGet, u, nil, &p); err != nil {
		return models.CommentsPage{}, err
	}
	return p, nil
}

func (c *Client) CommentCount(ctx context.Context, postID uuid.UUID) (int, error) {
	u := c.base.JoinPath("comments", "count")
	values := u.Query()
	values.Set("post_id", postID.String())
	u.RawQuery = values.Encode()

	var resp models.CountResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) CreateComment(ctx context.Context, postID uuid.UUID, text string, parentID uuid.UUID) (models.Comment, error) {
	req := models.CreateRequest{
		PostID:   postID,
		ParentID: parentID,
		Author:   c.author,
		Text:     text,
	}

	var comment models.Comment
	if err := c.do(ctx, http.MethodPost, c.base.JoinPath("comments"), req, &comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, id uuid.UUID, text string) (models.Comment, error) {
	var comment models.Comment
	err := c.do(ctx, http.MethodPut, c.base.JoinPath("comments", id.String()), models.UpdateRequest{Text: text}, &comment)
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, c.base.JoinPath("comments", id.String()), nil, nil)
}

// do sends one request and decodes the answer into out, when out is not nil.
func (c *Client) do(ctx context.Context, method string, u *url.URL, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("error creating request %s %s: %w", method, u, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.Must(uuid.NewV4()).String()
	req.Header.Set("X-Request-Id", reqID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling comments service: %w", err)
	}
	defer resp.Body.Close()

	log.Debugf("[remote][%s] %s %s: %d", reqID, method, u.Path, resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return &ErrNotFound{msg: fmt.Sprintf("%s %s returned 404", method, u.Path)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response from comments service: %w", err)
	}
	return nil
}
