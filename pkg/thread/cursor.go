package thread

import "bookstories/pkg/models"

const defaultPageSize = 10

// Cursor tracks which page of root comments is requested next.
type Cursor struct {
	Page     int
	Limit    int
	LastPage bool
}

func NewCursor(limit int) Cursor {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return Cursor{Page: 1, Limit: limit}
}

// Advance applies the pagination reported with a fetched page.
func (c *Cursor) Advance(p models.Pagination) {
	c.LastPage = p.CurrentPage >= p.TotalPages
	if !c.LastPage {
		c.Page++
	}
}

func (c *Cursor) Reset() {
	c.Page = 1
	c.LastPage = false
}
