package thread

import (
	"context"
	"strings"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/models"
)

// Messages handled by syncActor. Requests come from Engine; the *Done messages are
// posted by the goroutines running remote calls.
type (
	loadMsg struct {
		ctx context.Context
	}

	loadMoreMsg struct {
		ctx  context.Context
		item *models.Comment
	}

	refreshMsg struct {
		ctx context.Context
	}

	countMsg struct {
		ctx context.Context
	}

	createMsg struct {
		ctx      context.Context
		text     string
		parentID uuid.UUID
	}

	updateMsg struct {
		ctx  context.Context
		id   uuid.UUID
		text string
	}

	deleteMsg struct {
		ctx context.Context
		id  uuid.UUID
	}

	stateMsg struct{}

	loadDoneMsg struct {
		ctx    context.Context
		task   *Task
		page   models.CommentsPage
		err    error
		waiter *actor.PID
	}

	countDoneMsg struct {
		ctx   context.Context
		task  *Task
		count int
		err   error
	}

	createDoneMsg struct {
		ctx     context.Context
		task    *Task
		comment models.Comment
		err     error
		waiter  *actor.PID
	}

	updateDoneMsg struct {
		ctx     context.Context
		task    *Task
		comment models.Comment
		err     error
		waiter  *actor.PID
	}

	deleteDoneMsg struct {
		ctx    context.Context
		task   *Task
		id     uuid.UUID
		err    error
		waiter *actor.PID
	}
)

// syncActor owns the comment tree of one book story. Every field is read and
// written from Receive only.
type syncActor struct {
	remote Remote
	postID uuid.UUID

	tree   *Tree
	cursor Cursor
	coord  *Coordinator

	lastErr  *SyncError
	countErr error
}

func newSyncActor(remote Remote, postID uuid.UUID, pageSize int) *syncActor {
	return &syncActor{
		remote: remote,
		postID: postID,
		tree:   NewTree(),
		cursor: NewCursor(pageSize),
		coord:  NewCoordinator(),
	}
}

func (a *syncActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		log.Debugf("[thread] engine for post %v started", a.postID)

	case *loadMsg:
		a.startLoad(ctx, msg.ctx, ctx.Sender())

	case *loadMoreMsg:
		last := a.tree.Last()
		if msg.item == nil || last == nil || last.ID != msg.item.ID {
			respond(ctx, ctx.Sender(), false)
			return
		}
		a.startLoad(ctx, msg.ctx, ctx.Sender())

	case *refreshMsg:
		a.coord.CancelLoad()
		a.cursor.Reset()
		a.tree.Reset()
		a.lastErr = nil
		a.startCount(ctx, msg.ctx)
		a.startLoad(ctx, msg.ctx, ctx.Sender())

	case *countMsg:
		a.startCount(ctx, msg.ctx)

	case *createMsg:
		a.startCreate(ctx, msg)

	case *updateMsg:
		a.startUpdate(ctx, msg)

	case *deleteMsg:
		a.startDelete(ctx, msg)

	case *stateMsg:
		ctx.Respond(a.state())

	case *loadDoneMsg:
		a.loadDone(ctx, msg)

	case *countDoneMsg:
		a.countDone(msg)

	case *createDoneMsg:
		a.createDone(ctx, msg)

	case *updateDoneMsg:
		a.updateDone(ctx, msg)

	case *deleteDoneMsg:
		a.deleteDone(ctx, msg)
	}
}

func (a *syncActor) startLoad(actx actor.Context, parent context.Context, waiter *actor.PID) {
	if a.cursor.LastPage {
		log.Debugf("[thread] post %v: last page already loaded", a.postID)
		respond(actx, waiter, false)
		return
	}

	ctx, task, ok := a.coord.StartLoad(parent)
	if !ok {
		log.Debugf("[thread] post %v: page load already running", a.postID)
		respond(actx, waiter, false)
		return
	}
	a.lastErr = nil

	page, limit := a.cursor.Page, a.cursor.Limit
	root, self := actx.ActorSystem().Root, actx.Self()
	go func() {
		p, err := a.remote.Comments(ctx, a.postID, page, limit)
		root.Send(self, &loadDoneMsg{ctx: ctx, task: task, page: p, err: err, waiter: waiter})
	}()
}

func (a *syncActor) loadDone(actx actor.Context, msg *loadDoneMsg) {
	res, serr := classify(msg.ctx, OpLoad, msg.err)
	a.coord.FinishLoad(msg.task)

	switch res {
	case cancelled:
		log.Debugf("[thread] post %v: page load %v cancelled", a.postID, msg.task.ID)
		respond(actx, msg.waiter, false)
	case failed:
		a.lastErr = serr
		log.Errorf("[thread] post %v: page %d: %v", a.postID, a.cursor.Page, serr)
		respond(actx, msg.waiter, false)
	default:
		// Roots already held are skipped, not appended a second time.
		a.tree.Append(msg.page.Comments)
		a.cursor.Advance(msg.page.Pagination)
		log.Debugf("[thread] post %v: loaded %d roots, page %d/%d", a.postID,
			len(msg.page.Comments), msg.page.Pagination.CurrentPage, msg.page.Pagination.TotalPages)
		respond(actx, msg.waiter, true)
	}
}

// startCount fetches the total in the background. It outlives the caller's context.
func (a *syncActor) startCount(actx actor.Context, parent context.Context) {
	ctx, task, ok := a.coord.StartCount(context.WithoutCancel(parent))
	if !ok {
		return
	}

	root, self := actx.ActorSystem().Root, actx.Self()
	go func() {
		n, err := a.remote.CommentCount(ctx, a.postID)
		root.Send(self, &countDoneMsg{ctx: ctx, task: task, count: n, err: err})
	}()
}

func (a *syncActor) countDone(msg *countDoneMsg) {
	res, _ := classify(msg.ctx, OpCount, msg.err)
	a.coord.FinishCount(msg.task)

	switch res {
	case failed:
		a.countErr = msg.err
		log.Debugf("[thread] post %v: count fetch failed: %v", a.postID, msg.err)
	case succeeded:
		a.countErr = nil
		a.tree.SetTotalCount(msg.count)
	}
}

func (a *syncActor) startCreate(actx actor.Context, msg *createMsg) {
	waiter := actx.Sender()
	if strings.TrimSpace(msg.text) == "" {
		a.lastErr = invalidInput(OpCreate, "comment text is empty")
		respond(actx, waiter, (*models.Comment)(nil))
		return
	}

	ctx, task := a.coord.StartOp(msg.ctx)
	a.lastErr = nil

	root, self := actx.ActorSystem().Root, actx.Self()
	go func() {
		c, err := a.remote.CreateComment(ctx, a.postID, msg.text, msg.parentID)
		root.Send(self, &createDoneMsg{ctx: ctx, task: task, comment: c, err: err, waiter: waiter})
	}()
}

func (a *syncActor) createDone(actx actor.Context, msg *createDoneMsg) {
	res, serr := classify(msg.ctx, OpCreate, msg.err)
	a.coord.FinishOp(msg.task)

	switch res {
	case cancelled:
		respond(actx, msg.waiter, (*models.Comment)(nil))
	case failed:
		a.lastErr = serr
		log.Errorf("[thread] post %v: %v", a.postID, serr)
		respond(actx, msg.waiter, (*models.Comment)(nil))
	default:
		c := msg.comment
		a.tree.InsertCreated(&c)
		log.Debugf("[thread] post %v: comment %v created", a.postID, c.ID)
		respond(actx, msg.waiter, c.Clone())
	}
}

func (a *syncActor) startUpdate(actx actor.Context, msg *updateMsg) {
	waiter := actx.Sender()
	if strings.TrimSpace(msg.text) == "" {
		a.lastErr = invalidInput(OpUpdate, "comment text is empty")
		respond(actx, waiter, (*models.Comment)(nil))
		return
	}

	ctx, task := a.coord.StartOp(msg.ctx)
	a.lastErr = nil

	root, self := actx.ActorSystem().Root, actx.Self()
	go func() {
		c, err := a.remote.UpdateComment(ctx, msg.id, msg.text)
		root.Send(self, &updateDoneMsg{ctx: ctx, task: task, comment: c, err: err, waiter: waiter})
	}()
}

func (a *syncActor) updateDone(actx actor.Context, msg *updateDoneMsg) {
	res, serr := classify(msg.ctx, OpUpdate, msg.err)
	a.coord.FinishOp(msg.task)

	switch res {
	case cancelled:
		respond(actx, msg.waiter, (*models.Comment)(nil))
	case failed:
		a.lastErr = serr
		log.Errorf("[thread] post %v: %v", a.postID, serr)
		respond(actx, msg.waiter, (*models.Comment)(nil))
	default:
		echo := msg.comment.Clone()
		c := msg.comment
		if !a.tree.ReplaceUpdated(&c) {
			log.Debugf("[thread] post %v: updated comment %v is not loaded", a.postID, c.ID)
		}
		respond(actx, msg.waiter, echo)
	}
}

func (a *syncActor) startDelete(actx actor.Context, msg *deleteMsg) {
	ctx, task := a.coord.StartDelete(msg.ctx)
	a.lastErr = nil

	root, self, waiter := actx.ActorSystem().Root, actx.Self(), actx.Sender()
	go func() {
		err := a.remote.DeleteComment(ctx, msg.id)
		root.Send(self, &deleteDoneMsg{ctx: ctx, task: task, id: msg.id, err: err, waiter: waiter})
	}()
}

func (a *syncActor) deleteDone(actx actor.Context, msg *deleteDoneMsg) {
	res, serr := classify(msg.ctx, OpDelete, msg.err)
	tracked := a.coord.FinishDelete(msg.task)

	switch res {
	case cancelled:
		respond(actx, msg.waiter, false)
	case failed:
		if tracked {
			a.lastErr = serr
		}
		log.Errorf("[thread] post %v: %v", a.postID, serr)
		respond(actx, msg.waiter, false)
	default:
		a.tree.RemoveDeleted(msg.id)
		if !tracked {
			log.Warnf("[thread] post %v: delete of %v finished after a newer delete took its slot", a.postID, msg.id)
		}
		respond(actx, msg.waiter, tracked)
	}
}

func (a *syncActor) state() State {
	return State{
		Comments:   a.tree.Snapshot(),
		TotalCount: a.tree.TotalCount(),
		Page:       a.cursor.Page,
		LastPage:   a.cursor.LastPage,
		Loading:    a.coord.Loading(),
		Counting:   a.coord.Counting(),
		InFlight:   a.coord.InFlightOps(),
		LastError:  a.lastErr,
	}
}

// respond answers a waiting caller. Requests sent without a future have no waiter.
func respond(actx actor.Context, waiter *actor.PID, v interface{}) {
	if waiter == nil {
		return
	}
	actx.Send(waiter, v)
}
