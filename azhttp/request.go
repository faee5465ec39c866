// Package azhttp implements the span-backed HTTP request/response model
// and the policy pipeline that carries every outbound call: unique
// request id, retry, authentication, logging, telemetry, api-version
// and the transport adapter. All buffers are caller-provided; the
// pipeline never retains them past a request's lifetime.
package azhttp

import (
	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// HTTP method verbs.
var (
	MethodGet    = span.FromString("GET")
	MethodHead   = span.FromString("HEAD")
	MethodPost   = span.FromString("POST")
	MethodPut    = span.FromString("PUT")
	MethodDelete = span.FromString("DELETE")
	MethodPatch  = span.FromString("PATCH")
)

// Header is one request or response header.
type Header struct {
	Key   span.Span
	Value span.Span
}

// Request is a span-backed HTTP request. It owns no memory: the URL
// buffer, the headers backing array and the body belong to the caller
// and are mutated in place.
type Request struct {
	ctx    *azctx.Context
	method span.Span

	url        span.Span // full backing buffer
	urlLength  int32
	queryStart int32 // index of '?', or -1 when the URL has no query

	headers           []Header // len = appended, cap = maximum
	retryHeadersStart int32

	body span.Span
}

// Init prepares the request. urlBuffer's length is the initial URL and
// its capacity the room left for query parameters; headersBuffer must
// be an empty slice whose capacity bounds the number of headers.
func (r *Request) Init(ctx *azctx.Context, method, urlBuffer span.Span, headersBuffer []Header, body span.Span) error {
	if len(method) == 0 {
		return result.ErrHTTPInvalidMethodVerb
	}
	r.ctx = ctx
	r.method = method
	r.url = urlBuffer
	r.urlLength = span.Size(urlBuffer)
	r.queryStart = span.Find(urlBuffer, span.FromString("?"))
	r.headers = headersBuffer[:0]
	r.retryHeadersStart = 0
	r.body = body
	return nil
}

// Context returns the request's cancellation context.
func (r *Request) Context() *azctx.Context {
	return r.ctx
}

// Method returns the request method verb.
func (r *Request) Method() span.Span {
	return r.method
}

// URL returns the current URL including any appended query parameters.
func (r *Request) URL() span.Span {
	return r.url[:r.urlLength]
}

// Body returns the request body.
func (r *Request) Body() span.Span {
	return r.body
}

// SetQueryParameter url-encodes name and value and appends them to the
// URL, choosing '?' or '&' depending on whether a query is present.
func (r *Request) SetQueryParameter(name, value span.Span) error {
	if len(name) == 0 {
		return result.ErrInvalidArg
	}
	need := 2 + span.URLEncodedLength(name) + span.URLEncodedLength(value)
	if span.Capacity(r.url)-r.urlLength < need {
		return result.ErrInsufficientSpanSize
	}

	buf := r.url[:span.Capacity(r.url)]
	sep := byte('&')
	if r.queryStart < 0 {
		sep = '?'
		r.queryStart = r.urlLength
	}
	buf[r.urlLength] = sep
	r.urlLength++

	n, err := span.URLEncode(buf[r.urlLength:], name)
	if err != nil {
		return err
	}
	r.urlLength += n
	buf[r.urlLength] = '='
	r.urlLength++

	n, err = span.URLEncode(buf[r.urlLength:], value)
	if err != nil {
		return err
	}
	r.urlLength += n
	return nil
}

// AppendHeader adds one header pair at the end of the headers region.
func (r *Request) AppendHeader(name, value span.Span) error {
	if len(name) == 0 {
		return result.ErrInvalidArg
	}
	if len(r.headers) == cap(r.headers) {
		return result.ErrInsufficientSpanSize
	}
	r.headers = append(r.headers, Header{Key: name, Value: value})
	return nil
}

// HeadersCount returns the number of appended headers.
func (r *Request) HeadersCount() int32 {
	return int32(len(r.headers))
}

// Header returns the i-th appended header.
func (r *Request) Header(i int32) (Header, error) {
	if i < 0 || i >= int32(len(r.headers)) {
		return Header{}, result.ErrInvalidArg
	}
	return r.headers[i], nil
}

// MarkRetryHeadersStart records the current end of the headers region;
// RemoveRetryHeaders truncates back to it before each retry so the base
// headers survive untouched.
func (r *Request) MarkRetryHeadersStart() {
	r.retryHeadersStart = int32(len(r.headers))
}

// RemoveRetryHeaders discards every header appended after the recorded
// retry mark.
func (r *Request) RemoveRetryHeaders() {
	r.headers = r.headers[:r.retryHeadersStart]
}

// truncateHeaders drops headers appended after index n.
func (r *Request) truncateHeaders(n int32) {
	r.headers = r.headers[:n]
}
