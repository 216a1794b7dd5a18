package thread

import (
	"context"
	"errors"
	"net/http"
)

// Error codes recorded in SyncError.
const (
	ErrInvalidInput = "INVALID_INPUT"
	ErrNotFound     = "NOT_FOUND"
	ErrRejected     = "REJECTED"
	ErrUnavailable  = "UNAVAILABLE"
)

// Operation names.
const (
	OpLoad   = "load"
	OpCount  = "count"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// SyncError is the failure of one engine operation in a form fit for display.
type SyncError struct {
	Op      string
	Code    string
	Message string
	Origin  error
}

func (e *SyncError) Error() string {
	if e.Origin != nil {
		return e.Op + ": " + e.Message + ": " + e.Origin.Error()
	}
	return e.Op + ": " + e.Message
}

func (e *SyncError) Unwrap() error {
	return e.Origin
}

// IsErrorCode reports whether err is a SyncError with the given code.
func IsErrorCode(err error, code string) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// statusCoder is implemented by remote errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

type outcome int

const (
	succeeded outcome = iota
	cancelled
	failed
)

// classify sorts the result of a remote call. Cancellation wins over any error the
// call returned, since a cancelled call must not touch the state.
func classify(ctx context.Context, op string, err error) (outcome, *SyncError) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return cancelled, nil
	}
	if err == nil {
		return succeeded, nil
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusNotFound:
			return failed, &SyncError{Op: op, Code: ErrNotFound, Message: notFoundMessage(op), Origin: err}
		case status == http.StatusUnprocessableEntity:
			return failed, &SyncError{Op: op, Code: ErrRejected, Message: "comment was rejected by moderation", Origin: err}
		case status >= 400 && status < 500:
			return failed, &SyncError{Op: op, Code: ErrRejected, Message: "request was rejected", Origin: err}
		}
	}

	return failed, &SyncError{Op: op, Code: ErrUnavailable, Message: unavailableMessage(op), Origin: err}
}

func invalidInput(op, msg string) *SyncError {
	return &SyncError{Op: op, Code: ErrInvalidInput, Message: msg}
}

func notFoundMessage(op string) string {
	if op == OpLoad || op == OpCount {
		return "story not found"
	}
	return "comment not found"
}

func unavailableMessage(op string) string {
	switch op {
	case OpLoad:
		return "failed to load comments"
	case OpCreate:
		return "failed to post comment"
	case OpUpdate:
		return "failed to edit comment"
	case OpDelete:
		return "failed to delete comment"
	}
	return "comments service unavailable"
}
