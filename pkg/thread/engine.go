// Package thread keeps the comment thread of one book story in memory and in step
// with the comments service.
//
// The thread is a list of root comments, each with at most one level of replies,
// loaded page by page. Engine is the entry point: every state change runs on a single
// actor, while the calls to the service run on their own goroutines and report back
// to that actor when they return. Changes are therefore applied in the order the
// service answers, not the order the calls were made.
package thread

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/models"
)

const defaultReplyTimeout = 30 * time.Second

type Options struct {
	// PageSize is the number of root comments requested per page.
	PageSize int
	// ReplyTimeout bounds how long a caller waits for an operation to report back.
	// It should be longer than the remote client timeout.
	ReplyTimeout time.Duration
}

// State is a read-only copy of the engine state.
type State struct {
	Comments   []*models.Comment
	TotalCount int
	Page       int
	LastPage   bool
	Loading    bool
	// Counting is set while a total count fetch is running.
	Counting   bool
	InFlight   int
	LastError  *SyncError
}

type Engine struct {
	root    *actor.RootContext
	pid     *actor.PID
	timeout time.Duration
}

// New spawns the engine actor for the comments of postID.
func New(system *actor.ActorSystem, remote Remote, postID uuid.UUID, opts Options) *Engine {
	timeout := opts.ReplyTimeout
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return newSyncActor(remote, postID, opts.PageSize)
	})

	return &Engine{
		root:    system.Root,
		pid:     system.Root.Spawn(props),
		timeout: timeout,
	}
}

// Stop terminates the engine actor. Operations still running are abandoned.
func (e *Engine) Stop() {
	e.root.Stop(e.pid)
}

// LoadNextPage fetches the next page of root comments and appends it. It returns
// false without calling the service when a load is already running or the last page
// has been loaded, and false when the load failed or was cancelled.
func (e *Engine) LoadNextPage(ctx context.Context) bool {
	ok, _ := e.request(&loadMsg{ctx: ctx}).(bool)
	return ok
}

// LoadMoreIfNeeded loads the next page only when item is the last root held.
func (e *Engine) LoadMoreIfNeeded(ctx context.Context, item *models.Comment) bool {
	ok, _ := e.request(&loadMoreMsg{ctx: ctx, item: item}).(bool)
	return ok
}

// Refresh cancels a running load, empties the thread, refetches the total and loads
// the first page again.
func (e *Engine) Refresh(ctx context.Context) bool {
	ok, _ := e.request(&refreshMsg{ctx: ctx}).(bool)
	return ok
}

// FetchCount refreshes the total comment count in the background. Failures are not
// reported.
func (e *Engine) FetchCount(ctx context.Context) {
	e.root.Send(e.pid, &countMsg{ctx: ctx})
}

// Create posts a root comment (parentID is uuid.Nil) or a reply. It returns the
// comment confirmed by the service, or nil; see State().LastError for the reason.
func (e *Engine) Create(ctx context.Context, text string, parentID uuid.UUID) *models.Comment {
	c, _ := e.request(&createMsg{ctx: ctx, text: text, parentID: parentID}).(*models.Comment)
	return c
}

// Update changes the text of a comment and returns the comment as the service
// answered it, or nil. The answer carries no replies; the held root keeps its
// replies in State.
func (e *Engine) Update(ctx context.Context, id uuid.UUID, text string) *models.Comment {
	c, _ := e.request(&updateMsg{ctx: ctx, id: id, text: text}).(*models.Comment)
	return c
}

// Delete removes a comment. It returns false when the delete failed, and also when a
// later Delete call replaced this one while it was running.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) bool {
	ok, _ := e.request(&deleteMsg{ctx: ctx, id: id}).(bool)
	return ok
}

func (e *Engine) State() (State, error) {
	res, err := e.root.RequestFuture(e.pid, &stateMsg{}, e.timeout).Result()
	if err != nil {
		return State{}, err
	}
	st, _ := res.(State)
	return st, nil
}

func (e *Engine) request(msg interface{}) interface{} {
	res, err := e.root.RequestFuture(e.pid, msg, e.timeout).Result()
	if err != nil {
		log.Errorf("[thread] no reply to %T: %v", msg, err)
		return nil
	}
	return res
}
