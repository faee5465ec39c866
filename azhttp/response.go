package azhttp

import (
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// StatusLine is the parsed first line of an HTTP response.
type StatusLine struct {
	MajorVersion uint8
	MinorVersion uint8
	StatusCode   int32
	ReasonPhrase span.Span
}

const (
	responseStateStatusLine = iota
	responseStateHeaders
	responseStateBody
)

// Response presents the transport-filled buffer as a forward-only
// parser over the status line, the headers and the body. The buffer is
// caller-provided; Append is the transport-side writer.
type Response struct {
	buf   span.Span // backing buffer, len = written bytes
	next  int32     // parse offset
	state int
}

// Init points the response at an empty caller-provided buffer.
func (r *Response) Init(buffer span.Span) {
	r.buf = buffer[:0]
	r.reset()
}

// Append writes src at the end of the response buffer. It is called by
// the transport while receiving.
func (r *Response) Append(src span.Span) error {
	if len(r.buf)+len(src) > cap(r.buf) {
		return result.ErrInsufficientSpanSize
	}
	r.buf = append(r.buf, src...)
	return nil
}

// reset rewinds parsing and discards written bytes, for reuse between
// retry attempts.
func (r *Response) reset() {
	r.buf = r.buf[:0]
	r.next = 0
	r.state = responseStateStatusLine
}

// rewind restarts parsing without discarding the buffer.
func (r *Response) rewind() {
	r.next = 0
	r.state = responseStateStatusLine
}

// Bytes returns the raw written bytes.
func (r *Response) Bytes() span.Span {
	return r.buf
}

// StatusLine parses `HTTP/<major>.<minor> SP <3-digit> SP <reason>CRLF`.
// It always restarts from the beginning of the buffer, so the status is
// re-readable after header iteration.
func (r *Response) StatusLine() (StatusLine, error) {
	r.rewind()
	var sl StatusLine

	b := r.buf
	if len(b) < len("HTTP/d.d ddd \r\n") {
		return sl, result.ErrHTTPCorruptResponseHeader
	}
	if string(b[:5]) != "HTTP/" {
		return sl, result.ErrHTTPCorruptResponseHeader
	}
	if !isDigit(b[5]) || b[6] != '.' || !isDigit(b[7]) || b[8] != ' ' {
		return sl, result.ErrHTTPCorruptResponseHeader
	}
	sl.MajorVersion = b[5] - '0'
	sl.MinorVersion = b[7] - '0'

	if !isDigit(b[9]) || !isDigit(b[10]) || !isDigit(b[11]) || b[12] != ' ' {
		return sl, result.ErrHTTPCorruptResponseHeader
	}
	sl.StatusCode = int32(b[9]-'0')*100 + int32(b[10]-'0')*10 + int32(b[11]-'0')

	// Reason phrase: HTAB, SP, VCHAR and obs-text, up to CR.
	i := int32(13)
	for ; i < span.Size(b); i++ {
		c := b[i]
		if c == '\r' {
			break
		}
		if c != '\t' && c != ' ' && (c < 0x21 || c == 0x7f) {
			return sl, result.ErrHTTPCorruptResponseHeader
		}
	}
	if i+1 >= span.Size(b) || b[i+1] != '\n' {
		return sl, result.ErrHTTPCorruptResponseHeader
	}
	sl.ReasonPhrase = span.Slice(b, 13, i)

	r.next = i + 2
	r.state = responseStateHeaders
	return sl, nil
}

// NextHeader consumes one `name: OWS value OWS CRLF` line. It returns
// result.ErrHTTPEndOfHeaders on the blank line terminating the header
// block.
func (r *Response) NextHeader() (Header, error) {
	if r.state == responseStateStatusLine {
		if _, err := r.StatusLine(); err != nil {
			return Header{}, err
		}
	}
	if r.state != responseStateHeaders {
		return Header{}, result.ErrHTTPInvalidState
	}

	b := r.buf
	if r.next+1 < span.Size(b) && b[r.next] == '\r' && b[r.next+1] == '\n' {
		r.next += 2
		r.state = responseStateBody
		return Header{}, result.ErrHTTPEndOfHeaders
	}

	colon := span.Find(b[r.next:], span.FromString(":"))
	if colon <= 0 {
		return Header{}, result.ErrHTTPCorruptResponseHeader
	}
	key := span.Slice(b, r.next, r.next+colon)

	i := r.next + colon + 1
	for i < span.Size(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	start := i
	for i < span.Size(b) && b[i] != '\r' {
		i++
	}
	if i+1 >= span.Size(b) || b[i+1] != '\n' {
		return Header{}, result.ErrHTTPCorruptResponseHeader
	}
	end := i
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}

	r.next = i + 2
	return Header{Key: key, Value: span.Slice(b, start, end)}, nil
}

// Body returns everything past the header block.
func (r *Response) Body() (span.Span, error) {
	for r.state != responseStateBody {
		if _, err := r.NextHeader(); err != nil {
			if err == result.ErrHTTPEndOfHeaders {
				break
			}
			return nil, err
		}
	}
	return r.buf[r.next:], nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
