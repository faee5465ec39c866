package azmqtt

import (
	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// DefaultRequestTableCapacity bounds in-flight requests per client.
const DefaultRequestTableCapacity = 5

// PendingRequest ties an in-flight correlation id to its deadline and
// to the policy that owns the exchange.
type PendingRequest struct {
	CorrelationID span.Span
	MessageID     int32
	Owner         any

	ctx *azctx.Context
}

// Context returns the request's deadline context.
func (r *PendingRequest) Context() *azctx.Context {
	return r.ctx
}

// RequestTable is the bounded table of pending requests, keyed by
// correlation id with a secondary message-id lookup. It is only
// accessed from within the event pipeline, under the pipeline mutex.
type RequestTable struct {
	requests []PendingRequest
}

// NewRequestTable creates a table bounded to capacity requests.
func NewRequestTable(capacity int) *RequestTable {
	if capacity <= 0 {
		capacity = DefaultRequestTableCapacity
	}
	return &RequestTable{requests: make([]PendingRequest, 0, capacity)}
}

// Add records a new in-flight request with a deadline derived from
// parent plus the timeout.
func (t *RequestTable) Add(correlationID span.Span, parent *azctx.Context, nowMs, timeoutMs int64, owner any) (*PendingRequest, error) {
	if len(t.requests) == cap(t.requests) {
		return nil, result.ErrOutOfMemory
	}
	t.requests = append(t.requests, PendingRequest{
		CorrelationID: correlationID,
		MessageID:     -1,
		Owner:         owner,
		ctx:           azctx.WithExpiration(parent, nowMs+timeoutMs),
	})
	return &t.requests[len(t.requests)-1], nil
}

// Remove deletes the request with the given correlation id.
func (t *RequestTable) Remove(correlationID span.Span) error {
	for i := range t.requests {
		if span.IsContentEqual(t.requests[i].CorrelationID, correlationID) {
			t.requests = append(t.requests[:i], t.requests[i+1:]...)
			return nil
		}
	}
	return result.ErrItemNotFound
}

// FindByCorrelationID returns the pending request with the given id.
func (t *RequestTable) FindByCorrelationID(correlationID span.Span) (*PendingRequest, error) {
	for i := range t.requests {
		if span.IsContentEqual(t.requests[i].CorrelationID, correlationID) {
			return &t.requests[i], nil
		}
	}
	return nil, result.ErrItemNotFound
}

// FindByMessageID returns the pending request bound to the given
// transport message id.
func (t *RequestTable) FindByMessageID(messageID int32) (*PendingRequest, error) {
	for i := range t.requests {
		if t.requests[i].MessageID == messageID {
			return &t.requests[i], nil
		}
	}
	return nil, result.ErrItemNotFound
}

// FirstExpired returns the first request whose deadline passed, or nil.
func (t *RequestTable) FirstExpired(nowMs int64) *PendingRequest {
	for i := range t.requests {
		if t.requests[i].ctx.HasExpired(nowMs) {
			return &t.requests[i]
		}
	}
	return nil
}

// Len returns the number of pending requests.
func (t *RequestTable) Len() int {
	return len(t.requests)
}
