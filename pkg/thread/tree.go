package thread

import (
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/models"
)

// Tree holds the root comments of one book story in display order together with
// the running total of comments.
//
// The index maps every held comment ID to the ID of the root that owns it (a root
// owns itself). It only answers "where is this comment"; order always comes from
// the roots slice.
type Tree struct {
	roots []*models.Comment
	index map[uuid.UUID]uuid.UUID
	total int
}

func NewTree() *Tree {
	return &Tree{index: make(map[uuid.UUID]uuid.UUID)}
}

func (t *Tree) Len() int {
	return len(t.roots)
}

func (t *Tree) TotalCount() int {
	return t.total
}

func (t *Tree) SetTotalCount(n int) {
	t.total = n
}

// Last returns the last root comment or nil for an empty tree.
func (t *Tree) Last() *models.Comment {
	if len(t.roots) == 0 {
		return nil
	}
	return t.roots[len(t.roots)-1]
}

// Append adds a fetched page of roots after the roots already held, in page order.
// Unlike plain page concatenation, roots that are already present (created locally,
// or pushed onto the next page by newer roots) are skipped. Nested replies of
// replies are cut off.
func (t *Tree) Append(roots []*models.Comment) {
	for _, root := range roots {
		if root == nil {
			continue
		}
		if _, ok := t.index[root.ID]; ok {
			log.Debugf("[thread] skipping duplicate root %v from page", root.ID)
			continue
		}

		for _, reply := range root.Replies {
			reply.Replies = nil
			t.index[reply.ID] = root.ID
		}
		if len(root.Replies) == 0 {
			root.Replies = nil
		}

		t.index[root.ID] = root.ID
		t.roots = append(t.roots, root)
	}
}

// InsertCreated places a comment confirmed by the service. Roots go first; replies
// are appended to their root. A reply whose root is not loaded is not shown, but
// the total still counts it.
func (t *Tree) InsertCreated(c *models.Comment) bool {
	t.total++

	if c.IsRoot() {
		c.Replies = nil
		t.roots = append([]*models.Comment{c}, t.roots...)
		t.index[c.ID] = c.ID
		return true
	}

	i := t.rootPos(c.ParentID)
	if i < 0 {
		log.Warnf("[thread] parent %v of reply %v is not loaded, reply dropped", c.ParentID, c.ID)
		return false
	}

	c.Replies = nil
	t.roots[i].Replies = append(t.roots[i].Replies, c)
	t.index[c.ID] = c.ParentID
	return true
}

// ReplaceUpdated swaps in the updated version of a held comment. The update
// response has no replies, so a root keeps the replies it already had.
func (t *Tree) ReplaceUpdated(c *models.Comment) bool {
	if i := t.rootPos(c.ID); i >= 0 {
		if len(c.Replies) == 0 && len(t.roots[i].Replies) > 0 {
			c.Replies = t.roots[i].Replies
		}
		t.roots[i] = c
		return true
	}

	for _, root := range t.roots {
		for j, reply := range root.Replies {
			if reply.ID == c.ID {
				c.Replies = nil
				root.Replies[j] = c
				return true
			}
		}
	}

	return false
}

// RemoveDeleted drops a comment from wherever it is held. Removing a root takes its
// replies with it while the total goes down by one only.
func (t *Tree) RemoveDeleted(id uuid.UUID) bool {
	if i := t.rootPos(id); i >= 0 {
		root := t.roots[i]
		t.roots = append(t.roots[:i], t.roots[i+1:]...)
		delete(t.index, root.ID)
		for _, reply := range root.Replies {
			delete(t.index, reply.ID)
		}
		t.total--
		return true
	}

	for _, root := range t.roots {
		for j, reply := range root.Replies {
			if reply.ID != id {
				continue
			}
			root.Replies = append(root.Replies[:j], root.Replies[j+1:]...)
			if len(root.Replies) == 0 {
				root.Replies = nil
			}
			delete(t.index, id)
			t.total--
			return true
		}
	}

	return false
}

func (t *Tree) Reset() {
	t.roots = nil
	t.index = make(map[uuid.UUID]uuid.UUID)
	t.total = 0
}

// Snapshot returns a deep copy of the roots safe to hand out of the engine.
func (t *Tree) Snapshot() []*models.Comment {
	out := make([]*models.Comment, len(t.roots))
	for i, root := range t.roots {
		out[i] = root.Clone()
	}
	return out
}

// rootPos returns the position of the root with the given ID or -1.
func (t *Tree) rootPos(id uuid.UUID) int {
	owner, ok := t.index[id]
	if !ok || owner != id {
		return -1
	}
	for i, root := range t.roots {
		if root.ID == id {
			return i
		}
	}
	return -1
}
