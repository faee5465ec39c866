// Package azctx implements the cancellation and deadline tree shared by
// every request and event crossing a pipeline. Nodes are immutable after
// construction except for cancellation; expirations are monotonic
// milliseconds as produced by platform.Clock.
package azctx

import (
	"math"
	"sync/atomic"

	"github.com/amenzhinsky/azcore/result"
)

// NoExpiration marks a context that never expires on its own.
const NoExpiration = int64(math.MaxInt64)

// Context is a node of the cancellation tree. The zero value is not
// usable; derive nodes from Application.
type Context struct {
	parent     *Context
	expiration atomic.Int64
	key, value any
}

var app = func() *Context {
	c := &Context{}
	c.expiration.Store(NoExpiration)
	return c
}()

// Application returns the root of the tree. It is a process-wide
// singleton; cancelling it cancels everything derived from it.
func Application() *Context {
	return app
}

// WithExpiration derives a child that expires at the given monotonic
// millisecond instant.
func WithExpiration(parent *Context, expirationMs int64) *Context {
	c := &Context{parent: parent}
	c.expiration.Store(expirationMs)
	return c
}

// WithValue derives a child carrying a single key/value pair.
func WithValue(parent *Context, key, value any) *Context {
	c := &Context{parent: parent, key: key, value: value}
	c.expiration.Store(NoExpiration)
	return c
}

// Expiration returns the minimum expiration on the path to the root.
func (c *Context) Expiration() int64 {
	min := NoExpiration
	for n := c; n != nil; n = n.parent {
		if e := n.expiration.Load(); e < min {
			min = e
		}
	}
	return min
}

// Cancel moves the node's expiration into the past, before any clock
// reading (clocks start at 0). Descendants observe the cancellation on
// their next expiration walk; a racing stale read can only delay a
// cancellation, never lose one.
func (c *Context) Cancel() {
	c.expiration.Store(-1)
}

// HasExpired reports whether the context's effective expiration is
// before now.
func (c *Context) HasExpired(nowMs int64) bool {
	return c.Expiration() < nowMs
}

// Value walks parent-wards and returns the first value bound to key,
// or result.ErrItemNotFound when no ancestor carries it.
func (c *Context) Value(key any) (any, error) {
	for n := c; n != nil; n = n.parent {
		if n.key != nil && n.key == key {
			return n.value, nil
		}
	}
	return nil, result.ErrItemNotFound
}
