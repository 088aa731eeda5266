// Package admission bounds the number of concurrently active connections
// the server will service, via a non-blocking counting semaphore.
package admission

import "golang.org/x/sync/semaphore"

const token int64 = 1

// Controller gates how many connections may be in flight at once. A
// rejected TryAcquire means the caller should close the connection
// immediately rather than queue it: PetraCache has no backlog of its
// own, and an external router is expected to retry elsewhere.
type Controller struct {
	sema *semaphore.Weighted
	max  int
}

// New builds a Controller admitting at most max concurrent connections.
func New(max int) *Controller {
	if max <= 0 {
		panic("admission: invalid max connections")
	}
	return &Controller{sema: semaphore.NewWeighted(int64(max)), max: max}
}

// TryAcquire reserves one admission slot, reporting false if the server
// is already at capacity.
func (c *Controller) TryAcquire() bool {
	return c.sema.TryAcquire(token)
}

// Release frees the slot reserved by a prior successful TryAcquire.
func (c *Controller) Release() {
	c.sema.Release(token)
}

// Max reports the configured connection ceiling.
func (c *Controller) Max() int {
	return c.max
}
