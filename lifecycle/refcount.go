package lifecycle

// refCount counts the committed or in-flight attachments of one filter.
// It is only touched with the registry lock held.
type refCount struct {
	n int
}

func (c *refCount) inc() int {
	c.n++
	return c.n
}

// dec never goes below zero.
func (c *refCount) dec() int {
	if c.n > 0 {
		c.n--
	}
	return c.n
}

func (c *refCount) value() int { return c.n }
