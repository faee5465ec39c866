package azhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// Transport sends a request and populates the response buffer using
// the Append primitive.
type Transport interface {
	Send(req *Request, resp *Response) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(req *Request, resp *Response) error

func (f TransportFunc) Send(req *Request, resp *Response) error {
	return f(req, resp)
}

// DefaultTransportOption is a default transport configuration option.
type DefaultTransportOption func(tr *DefaultTransport)

// WithClient sets the client to use for HTTP requests.
func WithClient(c *http.Client) DefaultTransportOption {
	return func(tr *DefaultTransport) {
		tr.client = c
	}
}

// NewDefaultTransport returns a Transport backed by net/http.
func NewDefaultTransport(opts ...DefaultTransportOption) *DefaultTransport {
	tr := &DefaultTransport{client: http.DefaultClient}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// DefaultTransport drives requests through an injectable http.Client
// and writes the wire-shaped response into the span-backed buffer.
type DefaultTransport struct {
	client *http.Client
}

func (tr *DefaultTransport) Send(req *Request, resp *Response) error {
	now := platform.Clock()
	if req.Context().HasExpired(now) {
		return result.ErrCanceled
	}

	ctx := context.Background()
	if exp := req.Context().Expiration(); exp != azctx.NoExpiration {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(exp-now)*time.Millisecond)
		defer cancel()
	}

	hreq, err := http.NewRequestWithContext(
		ctx, string(req.Method()), string(req.URL()), bytes.NewReader(req.Body()),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", result.ErrHTTPAdapter, err)
	}
	for i := int32(0); i < req.HeadersCount(); i++ {
		h, _ := req.Header(i)
		hreq.Header.Add(string(h.Key), string(h.Value))
	}

	hresp, err := tr.client.Do(hreq)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return result.ErrHTTPCouldntResolveHost
		}
		return fmt.Errorf("%w: %v", result.ErrHTTPAdapter, err)
	}
	defer hresp.Body.Close()

	if err = tr.writeResponse(hresp, resp); err != nil {
		if errors.Is(err, result.ErrInsufficientSpanSize) {
			return result.ErrHTTPResponseOverflow
		}
		return err
	}
	return nil
}

func (tr *DefaultTransport) writeResponse(hresp *http.Response, resp *Response) error {
	if err := resp.Append(span.FromString(hresp.Proto + " " + hresp.Status + "\r\n")); err != nil {
		return err
	}
	for k, vs := range hresp.Header {
		for _, v := range vs {
			if err := resp.Append(span.FromString(k + ": " + v + "\r\n")); err != nil {
				return err
			}
		}
	}
	if err := resp.Append(span.FromString("\r\n")); err != nil {
		return err
	}

	buf := make([]byte, 4*1024)
	for {
		n, err := hresp.Body.Read(buf)
		if n > 0 {
			if aerr := resp.Append(buf[:n]); aerr != nil {
				return aerr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", result.ErrHTTPAdapter, err)
		}
	}
}
