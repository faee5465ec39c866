package azhttp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/logger"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// fakeClock advances a fixed step per reading so operation times are
// deterministic.
type fakeClock struct {
	now  int64
	step int64
}

func (c *fakeClock) read() int64 {
	c.now += c.step
	return c.now
}

func respond(t *testing.T, resp *Response, wire string) {
	t.Helper()
	require.NoError(t, resp.Append(span.FromString(wire)))
}

func newPipelineRequest(t *testing.T) (*Request, *Response) {
	t.Helper()
	req := newTestRequest(t, "https://h.example.com/x", 10)
	resp := &Response{}
	resp.Init(make([]byte, 0, 1024))
	return req, resp
}

func TestPipelineOrderAndRequestID(t *testing.T) {
	t.Parallel()

	var headers []string
	tr := TransportFunc(func(req *Request, resp *Response) error {
		headers = headers[:0]
		for i := int32(0); i < req.HeadersCount(); i++ {
			h, _ := req.Header(i)
			headers = append(headers, string(h.Key))
		}
		respond(t, resp, "HTTP/1.1 200 OK\r\n\r\n")
		return nil
	})

	pl := NewPipeline(tr, WithAPIVersion(APIVersionOptions{
		Name: "api-version", Version: "7.0",
	}))
	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))

	require.Len(t, headers, 2)
	assert.Equal(t, "x-ms-client-request-id", headers[0])
	assert.Equal(t, "User-Agent", headers[1])

	id, _ := req.Header(0)
	assert.Len(t, id.Value, 32, "request id must be 16 random bytes in hex")

	assert.Equal(t, "https://h.example.com/x?api-version=7.0", string(req.URL()))

	ua, _ := req.Header(1)
	assert.Regexp(t, `^azsdk-go-azcore/\d+\.\d+\.\d+ \(\w+\)$`, string(ua.Value))
}

func TestAPIVersionAsHeader(t *testing.T) {
	t.Parallel()

	tr := TransportFunc(func(req *Request, resp *Response) error {
		respond(t, resp, "HTTP/1.1 200 OK\r\n\r\n")
		return nil
	})
	pl := NewPipeline(tr, WithAPIVersion(APIVersionOptions{
		Name: "x-ms-version", Version: "2019-02-02", AddAsHeader: true,
	}))
	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))

	var found bool
	for i := int32(0); i < req.HeadersCount(); i++ {
		h, _ := req.Header(i)
		if string(h.Key) == "x-ms-version" && string(h.Value) == "2019-02-02" {
			found = true
		}
	}
	assert.True(t, found, "api version header missing")
	assert.Equal(t, "https://h.example.com/x", string(req.URL()))
}

func TestRetryPolicyRetriesRetriableStatuses(t *testing.T) {
	t.Parallel()

	var calls int
	var slept []int32
	tr := TransportFunc(func(req *Request, resp *Response) error {
		calls++
		if calls < 3 {
			respond(t, resp, "HTTP/1.1 503 Service Unavailable\r\n\r\n")
		} else {
			respond(t, resp, "HTTP/1.1 200 OK\r\n\r\n")
		}
		return nil
	})

	clock := &fakeClock{step: 1}
	pl := NewPipeline(tr, WithRetryOptions(RetryOptions{
		MaxTries: 4, RetryDelayMs: 500, MaxRetryDelayMs: 100000, MaxJitterMs: 1,
	}))
	p := pl.policies[1].(*retryPolicy)
	p.clock = clock.read
	p.sleep = func(ms int32) { slept = append(slept, ms) }
	p.random = func() int32 { return 0 }

	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))
	assert.Equal(t, 3, calls)

	sl, err := resp.StatusLine()
	require.NoError(t, err)
	assert.Equal(t, int32(200), sl.StatusCode)
	assert.NotEmpty(t, slept)
}

func TestRetryPolicyGivesUp(t *testing.T) {
	t.Parallel()

	var calls int
	tr := TransportFunc(func(req *Request, resp *Response) error {
		calls++
		return result.ErrHTTPAdapter
	})

	pl := NewPipeline(tr, WithRetryOptions(RetryOptions{
		MaxTries: 3, RetryDelayMs: 1, MaxRetryDelayMs: 2, MaxJitterMs: 1,
	}))
	p := pl.policies[1].(*retryPolicy)
	p.sleep = func(int32) {}

	req, resp := newPipelineRequest(t)
	assert.ErrorIs(t, pl.Do(req, resp), result.ErrHTTPAdapter)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyDoesNotRetryFatalErrors(t *testing.T) {
	t.Parallel()

	var calls int
	tr := TransportFunc(func(req *Request, resp *Response) error {
		calls++
		respond(t, resp, "HTTP/1.1 400 Bad Request\r\n\r\n")
		return nil
	})
	pl := NewPipeline(tr)
	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyCancellation(t *testing.T) {
	t.Parallel()

	tr := TransportFunc(func(req *Request, resp *Response) error {
		respond(t, resp, "HTTP/1.1 503 Busy\r\n\r\n")
		return nil
	})

	ctx := azctx.WithExpiration(azctx.Application(), 10)
	clock := &fakeClock{step: 100} // expired by the first back-off check
	pl := NewPipeline(tr, WithRetryOptions(RetryOptions{
		MaxTries: 4, RetryDelayMs: 4000, MaxRetryDelayMs: 120000, MaxJitterMs: 1,
	}))
	p := pl.policies[1].(*retryPolicy)
	p.clock = clock.read
	p.sleep = func(int32) {}
	p.random = func() int32 { return 0 }

	buf := make([]byte, 64)
	n := copy(buf, "https://h/x")
	req := &Request{}
	require.NoError(t, req.Init(ctx, MethodGet, buf[:n], make([]Header, 0, 8), nil))
	resp := &Response{}
	resp.Init(make([]byte, 0, 256))

	assert.ErrorIs(t, pl.Do(req, resp), result.ErrCanceled)
}

func TestRetryPolicyRestoresHeaders(t *testing.T) {
	t.Parallel()

	var counts []int32
	tr := TransportFunc(func(req *Request, resp *Response) error {
		counts = append(counts, req.HeadersCount())
		respond(t, resp, "HTTP/1.1 503 Busy\r\n\r\n")
		return nil
	})

	pl := NewPipeline(tr)
	p := pl.policies[1].(*retryPolicy)
	p.sleep = func(int32) {}

	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))

	require.Len(t, counts, int(DefaultRetryOptions().MaxTries))
	for i := 1; i < len(counts); i++ {
		assert.Equal(t, counts[0], counts[i], "headers grew across retries")
	}
}

type fakeCredential struct {
	applied     int
	invalidated int
}

func (c *fakeCredential) Apply(req *Request) error {
	c.applied++
	return req.AppendHeader(span.FromString("authorization"), span.FromString("Bearer t"))
}

func (c *fakeCredential) InvalidateToken() {
	c.invalidated++
}

func TestAuthPolicyRepeatsOnceOn401(t *testing.T) {
	t.Parallel()

	var calls int
	tr := TransportFunc(func(req *Request, resp *Response) error {
		calls++
		if calls == 1 {
			respond(t, resp, "HTTP/1.1 401 Unauthorized\r\n\r\n")
		} else {
			respond(t, resp, "HTTP/1.1 200 OK\r\n\r\n")
		}
		return nil
	})

	cred := &fakeCredential{}
	pl := NewPipeline(tr, WithCredential(cred))
	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, cred.invalidated)
	assert.Equal(t, 2, cred.applied)

	// No duplicated authorization headers after the repeat.
	var auth int
	for i := int32(0); i < req.HeadersCount(); i++ {
		h, _ := req.Header(i)
		if string(h.Key) == "authorization" {
			auth++
		}
	}
	assert.Equal(t, 1, auth)
}

func TestLoggingPolicyFilter(t *testing.T) {
	var messages []string
	logger.SetListener(func(c logger.Classification, m []byte) {
		messages = append(messages, string(m))
	})
	logger.SetClassifications(logger.HTTPRequest)
	t.Cleanup(func() {
		logger.SetListener(nil)
		logger.SetClassifications(logger.All)
	})

	tr := TransportFunc(func(req *Request, resp *Response) error {
		respond(t, resp, "HTTP/1.1 200 OK\r\n\r\n")
		return nil
	})
	pl := NewPipeline(tr)
	req, resp := newPipelineRequest(t)
	require.NoError(t, pl.Do(req, resp))

	// Only the request side passes the filter.
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "HTTP Request : GET https://h.example.com/x")
}

func TestLogValueTruncation(t *testing.T) {
	t.Parallel()

	long := make([]byte, 80)
	for i := range long {
		long[i] = byte('a' + i%26)
	}

	b := &bytes.Buffer{}
	appendLogValue(b, long)
	buf := b.Bytes()
	assert.Len(t, buf, logValueSliceLength*2+len(" ... "))
	assert.Equal(t, string(long[:22]), string(buf[:22]))
	assert.Equal(t, string(long[len(long)-22:]), string(buf[len(buf)-22:]))
}
