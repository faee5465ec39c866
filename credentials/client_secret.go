package credentials

import (
	"github.com/tidwall/gjson"

	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/azhttp"
	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// Pre-sized buffers for the token acquisition round-trip.
const (
	aadURLBufferSize      = 2 * 1024
	aadBodyBufferSize     = 1 * 1024
	aadMaxHeaders         = 10
	aadResponseBufferSize = 3 * 1024
)

var authorizationHeader = span.FromString("authorization")

// ClientSecretCredentialOption is a credential configuration option.
type ClientSecretCredentialOption func(c *ClientSecretCredential)

// WithTransport overrides the HTTP transport used for token requests.
func WithTransport(tr azhttp.Transport) ClientSecretCredentialOption {
	return func(c *ClientSecretCredential) {
		c.transport = tr
	}
}

// WithClock overrides the monotonic clock, for deterministic expiries.
func WithClock(clock func() int64) ClientSecretCredentialOption {
	return func(c *ClientSecretCredential) {
		c.clock = clock
	}
}

// NewClientSecretCredential returns a credential performing the AAD
// OAuth2 client-credentials flow. Token requests run through a private
// pipeline over the same request/response model as the calls they
// authorize.
func NewClientSecretCredential(tenantID, clientID, clientSecret string, opts ...ClientSecretCredentialOption) *ClientSecretCredential {
	c := &ClientSecretCredential{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		clock:        platform.Clock,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = azhttp.NewDefaultTransport()
	}
	c.pipeline = azhttp.NewPipeline(c.transport)
	return c
}

// ClientSecretCredential caches the acquired token and refreshes it on
// expiry; concurrent refreshes serialize on the cache's writer lock and
// the last writer wins, which is idempotent.
type ClientSecretCredential struct {
	tenantID     string
	clientID     string
	clientSecret string
	scopes       string

	cache     tokenCache
	transport azhttp.Transport
	pipeline  *azhttp.Pipeline
	clock     func() int64
}

// SetScopes sets the resource scopes requested with the token.
func (c *ClientSecretCredential) SetScopes(scopes span.Span) error {
	c.scopes = string(scopes)
	return nil
}

// Apply attaches `authorization: Bearer <token>` to the request,
// acquiring a fresh token first when the cached one expired. The spin
// lock is never held across the token request.
func (c *ClientSecretCredential) Apply(req *azhttp.Request) error {
	var token Token
	c.cache.getToken(&token)

	if token.Expired(c.clock()) {
		if err := c.requestToken(req.Context(), &token); err != nil {
			return err
		}
		c.cache.setToken(&token)
	}

	return req.AppendHeader(authorizationHeader, token.Bytes())
}

// InvalidateToken drops the cached token so the next Apply re-acquires.
func (c *ClientSecretCredential) InvalidateToken() {
	c.cache.clear()
}

func (c *ClientSecretCredential) requestToken(ctx *azctx.Context, out *Token) error {
	urlBuf := make([]byte, aadURLBufferSize)
	n := copy(urlBuf, "https://login.microsoftonline.com/")
	en, err := span.URLEncode(urlBuf[n:], span.FromString(c.tenantID))
	if err != nil {
		return err
	}
	n += int(en)
	n += copy(urlBuf[n:], "/oauth2/token")

	bodyBuf := make([]byte, aadBodyBufferSize)
	body, err := c.buildBody(bodyBuf)
	if err != nil {
		return err
	}

	req := &azhttp.Request{}
	if err = req.Init(ctx, azhttp.MethodPost, urlBuf[:n],
		make([]azhttp.Header, 0, aadMaxHeaders), body); err != nil {
		return err
	}
	if err = req.AppendHeader(
		span.FromString("Content-Type"),
		span.FromString("application/x-www-form-urlencoded"),
	); err != nil {
		return err
	}

	resp := &azhttp.Response{}
	resp.Init(make([]byte, 0, aadResponseBufferSize))
	if err = c.pipeline.Do(req, resp); err != nil {
		return err
	}

	sl, err := resp.StatusLine()
	if err != nil {
		return err
	}
	if sl.StatusCode != 200 {
		return result.ErrHTTPAuthenticationFailed
	}
	respBody, err := resp.Body()
	if err != nil {
		return err
	}

	accessToken := gjson.GetBytes(respBody, "access_token")
	expiresIn := gjson.GetBytes(respBody, "expires_in")
	if !accessToken.Exists() || !expiresIn.Exists() {
		return result.ErrHTTPAuthenticationFailed
	}
	bearer := "Bearer " + accessToken.String()
	if len(bearer) > TokenBufferSize {
		return result.ErrInsufficientSpanSize
	}
	out.set(span.FromString(bearer), c.clock()+expiresIn.Int()*1000)
	return nil
}

// buildBody writes the url-encoded client-credentials grant into buf.
func (c *ClientSecretCredential) buildBody(buf []byte) (span.Span, error) {
	n := copy(buf, "grant_type=client_credentials&client_id=")
	for _, part := range []struct {
		sep   string
		value string
	}{
		{"", c.clientID},
		{"&client_secret=", c.clientSecret},
		{"&resource=", c.scopes},
	} {
		n += copy(buf[n:], part.sep)
		if n+int(span.URLEncodedLength(span.FromString(part.value))) > len(buf) {
			return nil, result.ErrInsufficientSpanSize
		}
		en, err := span.URLEncode(buf[n:], span.FromString(part.value))
		if err != nil {
			return nil, err
		}
		n += int(en)
	}
	return buf[:n], nil
}

var _ azhttp.Credential = (*ClientSecretCredential)(nil)
