package thread

import (
	"context"

	"github.com/gofrs/uuid"
)

// Task is the handle of one in-flight remote operation. Its cancel function is the
// cancellation target; comparing handles tells a finished task whether it still owns
// the slot it was started in.
type Task struct {
	ID     uuid.UUID
	cancel context.CancelFunc
}

func newTask(parent context.Context) (context.Context, *Task) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &Task{ID: uuid.Must(uuid.NewV4()), cancel: cancel}
}

// Coordinator decides which operations may run concurrently:
// one page load, one count fetch, any number of creates and updates,
// and one tracked delete. It is not safe for concurrent use and must only be
// touched from the engine's actor.
type Coordinator struct {
	load  *Task
	count *Task
	del   *Task
	ops   map[uuid.UUID]*Task
}

func NewCoordinator() *Coordinator {
	return &Coordinator{ops: make(map[uuid.UUID]*Task)}
}

// StartLoad claims the load slot. It reports false when a load is already running.
func (c *Coordinator) StartLoad(parent context.Context) (context.Context, *Task, bool) {
	if c.load != nil {
		return nil, nil, false
	}
	ctx, t := newTask(parent)
	c.load = t
	return ctx, t, true
}

// FinishLoad frees the load slot if t still holds it and reports whether it did.
func (c *Coordinator) FinishLoad(t *Task) bool {
	t.cancel()
	if c.load != t {
		return false
	}
	c.load = nil
	return true
}

// CancelLoad cancels the running load, if any, and frees the slot right away so a
// new load can start before the cancelled one returns.
func (c *Coordinator) CancelLoad() {
	if c.load == nil {
		return
	}
	c.load.cancel()
	c.load = nil
}

func (c *Coordinator) Loading() bool {
	return c.load != nil
}

func (c *Coordinator) StartCount(parent context.Context) (context.Context, *Task, bool) {
	if c.count != nil {
		return nil, nil, false
	}
	ctx, t := newTask(parent)
	c.count = t
	return ctx, t, true
}

func (c *Coordinator) Counting() bool {
	return c.count != nil
}

func (c *Coordinator) FinishCount(t *Task) {
	t.cancel()
	if c.count == t {
		c.count = nil
	}
}

// StartOp registers a create or update. Any number may run at once.
func (c *Coordinator) StartOp(parent context.Context) (context.Context, *Task) {
	ctx, t := newTask(parent)
	c.ops[t.ID] = t
	return ctx, t
}

func (c *Coordinator) FinishOp(t *Task) {
	t.cancel()
	delete(c.ops, t.ID)
}

func (c *Coordinator) InFlightOps() int {
	return len(c.ops)
}

// StartDelete puts a new delete into the delete slot. A delete that is still running
// is not rejected: it is replaced and keeps running untracked.
func (c *Coordinator) StartDelete(parent context.Context) (context.Context, *Task) {
	ctx, t := newTask(parent)
	c.del = t
	return ctx, t
}

// FinishDelete frees the delete slot if t still holds it. A false result means a
// later delete took the slot over and the result of t is orphaned.
func (c *Coordinator) FinishDelete(t *Task) bool {
	t.cancel()
	if c.del != t {
		return false
	}
	c.del = nil
	return true
}
