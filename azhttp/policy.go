package azhttp

import (
	"bytes"
	"encoding/hex"
	"errors"
	"runtime"
	"strconv"

	"github.com/google/uuid"

	"github.com/amenzhinsky/azcore/logger"
	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/retry"
	"github.com/amenzhinsky/azcore/span"
)

// Version of the SDK, reported by the telemetry policy.
const Version = "1.0.0"

// Credential mutates an outbound request to attach authentication,
// typically by appending an Authorization header.
type Credential interface {
	Apply(req *Request) error
}

// tokenInvalidator is implemented by credentials that cache a token;
// the auth policy flushes the cache after a 401 before repeating once.
type tokenInvalidator interface {
	InvalidateToken()
}

// Next submits the request to the rest of the chain.
type Next func(req *Request, resp *Response) error

// Policy is one node of the HTTP pipeline. It does local work around
// the request and forwards through next; the transport policy is
// terminal and never forwards.
type Policy interface {
	Do(req *Request, resp *Response, next Next) error
}

// Pipeline is the ordered policy chain a request traverses outward,
// with the response flowing back through the same chain in reverse.
type Pipeline struct {
	policies []Policy
}

// PipelineOption configures optional pipeline policies.
type PipelineOption func(o *pipelineOptions)

type pipelineOptions struct {
	credential Credential
	retry      RetryOptions
	apiVersion *APIVersionOptions
	telemetry  TelemetryOptions

	clock  func() int64
	sleep  func(ms int32)
	random func() int32
}

// WithCredential inserts the auth policy backed by cred.
func WithCredential(cred Credential) PipelineOption {
	return func(o *pipelineOptions) {
		o.credential = cred
	}
}

// WithRetryOptions overrides the retry policy defaults.
func WithRetryOptions(opts RetryOptions) PipelineOption {
	return func(o *pipelineOptions) {
		o.retry = opts
	}
}

// WithAPIVersion makes every request carry the service api version as
// a header or a query parameter.
func WithAPIVersion(opts APIVersionOptions) PipelineOption {
	return func(o *pipelineOptions) {
		o.apiVersion = &opts
	}
}

// WithTelemetry overrides the User-Agent component reported by the
// telemetry policy.
func WithTelemetry(opts TelemetryOptions) PipelineOption {
	return func(o *pipelineOptions) {
		o.telemetry = opts
	}
}

// NewPipeline assembles the standard policy chain around the transport:
// unique-request-id, retry, auth, logging, telemetry, api-version,
// transport.
func NewPipeline(transport Transport, opts ...PipelineOption) *Pipeline {
	o := pipelineOptions{
		retry:     DefaultRetryOptions(),
		telemetry: TelemetryOptions{Component: "azcore"},
		clock:     platform.Clock,
		sleep:     platform.Sleep,
		random:    platform.Random,
	}
	for _, opt := range opts {
		opt(&o)
	}

	policies := []Policy{
		requestIDPolicy{},
		&retryPolicy{opts: o.retry, clock: o.clock, sleep: o.sleep, random: o.random},
	}
	if o.credential != nil {
		policies = append(policies, &authPolicy{cred: o.credential})
	}
	policies = append(policies, &loggingPolicy{clock: o.clock})
	policies = append(policies, &telemetryPolicy{opts: o.telemetry})
	if o.apiVersion != nil {
		policies = append(policies, &apiVersionPolicy{opts: *o.apiVersion})
	}
	policies = append(policies, &transportPolicy{tr: transport})
	return &Pipeline{policies: policies}
}

// Do submits the request through the policy chain and leaves the
// response populated by the transport.
func (p *Pipeline) Do(req *Request, resp *Response) error {
	return p.step(0)(req, resp)
}

func (p *Pipeline) step(i int) Next {
	return func(req *Request, resp *Response) error {
		return p.policies[i].Do(req, resp, p.step(i+1))
	}
}

// requestIDPolicy tags each call with a random request id so failed
// operations can be correlated with service logs.
type requestIDPolicy struct{}

var requestIDHeader = span.FromString("x-ms-client-request-id")

func (requestIDPolicy) Do(req *Request, resp *Response, next Next) error {
	u := uuid.New()
	id := make([]byte, hex.EncodedLen(len(u)))
	hex.Encode(id, u[:])
	if err := req.AppendHeader(requestIDHeader, id); err != nil {
		return err
	}
	return next(req, resp)
}

// RetryOptions controls the retry policy back-off.
type RetryOptions struct {
	MaxTries        int16
	RetryDelayMs    int32
	MaxRetryDelayMs int32
	MaxJitterMs     int32
}

// DefaultRetryOptions returns the standard back-off configuration:
// 4 tries, 4 s base delay doubling up to 120 s.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxTries:        4,
		RetryDelayMs:    4 * 1000,
		MaxRetryDelayMs: 120 * 1000,
		MaxJitterMs:     1000,
	}
}

type retryPolicy struct {
	opts   RetryOptions
	clock  func() int64
	sleep  func(ms int32)
	random func() int32
}

// retryChunkMs bounds each sleep slice so a cancelled context is
// noticed without waiting out the whole back-off.
const retryChunkMs = 250

func (p *retryPolicy) Do(req *Request, resp *Response, next Next) error {
	req.MarkRetryHeadersStart()

	var err error
	for attempt := int16(0); ; attempt++ {
		req.RemoveRetryHeaders()
		resp.reset()

		start := p.clock()
		err = next(req, resp)
		if !p.shouldRetry(err, resp) || attempt+1 >= p.opts.MaxTries {
			return err
		}

		operationMs := int32(p.clock() - start)
		var jitter int32
		if p.opts.MaxJitterMs > 0 {
			jitter = p.random() % p.opts.MaxJitterMs
		}
		delay := retry.CalcDelay(operationMs, attempt, p.opts.RetryDelayMs, p.opts.MaxRetryDelayMs, jitter)

		for delay > 0 {
			if req.Context().HasExpired(p.clock()) {
				return result.ErrCanceled
			}
			chunk := delay
			if chunk > retryChunkMs {
				chunk = retryChunkMs
			}
			p.sleep(chunk)
			delay -= chunk
		}
		if req.Context().HasExpired(p.clock()) {
			return result.ErrCanceled
		}
	}
}

func (p *retryPolicy) shouldRetry(err error, resp *Response) bool {
	if err != nil {
		return errors.Is(err, result.ErrHTTPAdapter) ||
			errors.Is(err, result.ErrHTTPCouldntResolveHost)
	}
	sl, slErr := resp.StatusLine()
	if slErr != nil {
		return false
	}
	switch sl.StatusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// authPolicy lets the credential decorate the request, and on a 401
// flushes the cached token and repeats exactly once.
type authPolicy struct {
	cred Credential
}

func (p *authPolicy) Do(req *Request, resp *Response, next Next) error {
	marked := req.HeadersCount()
	if err := p.cred.Apply(req); err != nil {
		return err
	}
	err := next(req, resp)
	if err != nil {
		return err
	}

	sl, slErr := resp.StatusLine()
	if slErr != nil || sl.StatusCode != 401 {
		return nil
	}
	inv, ok := p.cred.(tokenInvalidator)
	if !ok {
		return nil
	}

	inv.InvalidateToken()
	req.truncateHeaders(marked)
	if err = p.cred.Apply(req); err != nil {
		return err
	}
	resp.reset()
	return next(req, resp)
}

// loggingPolicy reports requests and responses to the process logger
// when the matching classifications are enabled.
type loggingPolicy struct {
	clock func() int64
}

const (
	logValueMaxLength   = 50
	logValueSliceLength = 22
)

func appendLogValue(b *bytes.Buffer, v span.Span) {
	if len(v) <= logValueMaxLength {
		b.Write(v)
		return
	}
	b.Write(v[:logValueSliceLength])
	b.WriteString(" ... ")
	b.Write(v[len(v)-logValueSliceLength:])
}

func (p *loggingPolicy) logRequest(req *Request) []byte {
	b := &bytes.Buffer{}
	b.WriteString("HTTP Request : ")
	b.Write(req.Method())
	b.WriteByte(' ')
	b.Write(req.URL())
	for i := int32(0); i < req.HeadersCount(); i++ {
		h, _ := req.Header(i)
		b.WriteString("\n\t")
		b.Write(h.Key)
		b.WriteString(" : ")
		appendLogValue(b, h.Value)
	}
	return b.Bytes()
}

func (p *loggingPolicy) Do(req *Request, resp *Response, next Next) error {
	if !logger.Should(logger.HTTPRequest) && !logger.Should(logger.HTTPResponse) {
		return next(req, resp)
	}

	if logger.Should(logger.HTTPRequest) {
		logger.Write(logger.HTTPRequest, p.logRequest(req))
	}

	start := p.clock()
	err := next(req, resp)
	if err != nil || !logger.Should(logger.HTTPResponse) {
		return err
	}

	b := &bytes.Buffer{}
	b.WriteString("HTTP Response (")
	b.WriteString(strconv.FormatInt(p.clock()-start, 10))
	b.WriteString("ms) : ")
	sl, slErr := resp.StatusLine()
	if slErr != nil {
		return err
	}
	b.WriteString(strconv.FormatInt(int64(sl.StatusCode), 10))
	b.WriteByte(' ')
	b.Write(sl.ReasonPhrase)
	for {
		h, hErr := resp.NextHeader()
		if hErr != nil {
			break
		}
		b.WriteString("\n\t")
		b.Write(h.Key)
		b.WriteString(" : ")
		appendLogValue(b, h.Value)
	}
	b.WriteString("\n\n -> ")
	b.Write(p.logRequest(req))
	logger.Write(logger.HTTPResponse, b.Bytes())
	return err
}

// TelemetryOptions identifies the component reported in User-Agent.
type TelemetryOptions struct {
	Component string
}

type telemetryPolicy struct {
	opts TelemetryOptions
}

var userAgentHeader = span.FromString("User-Agent")

func (p *telemetryPolicy) Do(req *Request, resp *Response, next Next) error {
	ua := "azsdk-go-" + p.opts.Component + "/" + Version + " (" + runtime.GOOS + ")"
	if err := req.AppendHeader(userAgentHeader, span.FromString(ua)); err != nil {
		return err
	}
	return next(req, resp)
}

// APIVersionOptions carries the service api version and where to place
// it on the request.
type APIVersionOptions struct {
	Name        string
	Version     string
	AddAsHeader bool
}

type apiVersionPolicy struct {
	opts APIVersionOptions
}

func (p *apiVersionPolicy) Do(req *Request, resp *Response, next Next) error {
	name := span.FromString(p.opts.Name)
	version := span.FromString(p.opts.Version)
	var err error
	if p.opts.AddAsHeader {
		err = req.AppendHeader(name, version)
	} else {
		err = req.SetQueryParameter(name, version)
	}
	if err != nil {
		return err
	}
	return next(req, resp)
}

// transportPolicy hands the request to the bound transport. Terminal.
type transportPolicy struct {
	tr Transport
}

func (p *transportPolicy) Do(req *Request, resp *Response, _ Next) error {
	return p.tr.Send(req, resp)
}
