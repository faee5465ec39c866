// Package span provides bounds-checked operations over non-owning byte
// views. A Span is a plain byte slice whose length and capacity play the
// roles of the written region and the backing buffer extent; every
// mutating operation checks capacity up front and fails with
// result.ErrInsufficientSpanSize instead of writing a partial result.
package span

import (
	"bytes"

	"github.com/amenzhinsky/azcore/result"
)

// Span is a view over caller-owned bytes. It never owns its memory;
// the caller guarantees the backing buffer outlives every derived span.
type Span = []byte

// FromString returns a span over the bytes of s.
func FromString(s string) Span {
	return Span(s)
}

// FromBuffer returns a zero-length span backed by the whole of buf.
func FromBuffer(buf []byte) Span {
	return buf[:0]
}

// Size returns the length of s in bytes.
func Size(s Span) int32 {
	return int32(len(s))
}

// Capacity returns the capacity of the backing buffer.
func Capacity(s Span) int32 {
	return int32(cap(s))
}

// Slice returns the subview [begin, end) with capacity end-begin.
func Slice(s Span, begin, end int32) Span {
	return s[begin:end:end]
}

// SliceToEnd returns the subview from begin to the end of s.
func SliceToEnd(s Span, begin int32) Span {
	return s[begin:]
}

// Copy moves the contents of src to the head of dst's backing buffer and
// returns the zero-length tail beyond the written region. The original
// dst remains a view over the full buffer.
func Copy(dst, src Span) (Span, error) {
	n := len(src)
	if n > cap(dst) {
		return nil, result.ErrInsufficientSpanSize
	}
	copy(dst[:n], src)
	return dst[n:n:cap(dst)], nil
}

// CopyU8 writes a single byte to the head of dst and returns the tail.
func CopyU8(dst Span, b byte) (Span, error) {
	if cap(dst) < 1 {
		return nil, result.ErrInsufficientSpanSize
	}
	dst[:1][0] = b
	return dst[1:1:cap(dst)], nil
}

// Fill sets every byte of dst's backing buffer to b.
func Fill(dst Span, b byte) {
	d := dst[:cap(dst)]
	for i := range d {
		d[i] = b
	}
}

// Find returns the index of the first occurrence of needle in haystack,
// or -1 when absent.
func Find(haystack, needle Span) int32 {
	return int32(bytes.Index(haystack, needle))
}

// IsContentEqual reports whether a and b hold the same bytes.
func IsContentEqual(a, b Span) bool {
	return bytes.Equal(a, b)
}

// U32DigitCount returns the number of base-10 digits needed to format n.
func U32DigitCount(n uint32) int32 {
	if n == 0 {
		return 1
	}
	var c int32
	for ; n > 0; n /= 10 {
		c++
	}
	return c
}

// I32DigitCount returns the number of bytes needed to format n,
// including the minus sign for negative values.
func I32DigitCount(n int32) int32 {
	if n < 0 {
		return 1 + U32DigitCount(uint32(-int64(n)))
	}
	return U32DigitCount(uint32(n))
}

// AppendU32 appends the base-10 ASCII form of n after the current
// length of dst and returns the extended span.
func AppendU32(dst Span, n uint32) (Span, error) {
	c := U32DigitCount(n)
	if int32(cap(dst)-len(dst)) < c {
		return nil, result.ErrInsufficientSpanSize
	}
	end := int32(len(dst)) + c
	out := dst[:end]
	for i := end - 1; ; i-- {
		out[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return out, nil
}

// AppendI32 appends the base-10 ASCII form of n, with a leading minus
// sign for negative values, and returns the extended span.
func AppendI32(dst Span, n int32) (Span, error) {
	if n >= 0 {
		return AppendU32(dst, uint32(n))
	}
	if cap(dst)-len(dst) < int(I32DigitCount(n)) {
		return nil, result.ErrInsufficientSpanSize
	}
	out := dst[:len(dst)+1]
	out[len(out)-1] = '-'
	return AppendU32(out, uint32(-int64(n)))
}

const hexDigits = "0123456789ABCDEF"

func isURLUnreserved(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '-' || b == '_' || b == '.' || b == '~'
}

// URLEncodedLength returns the number of bytes URLEncode writes for src.
func URLEncodedLength(src Span) int32 {
	var n int32
	for _, b := range src {
		if isURLUnreserved(b) {
			n++
		} else {
			n += 3
		}
	}
	return n
}

// URLEncode percent-encodes src into the backing buffer of dst,
// preserving URL-unreserved bytes, and returns the number of bytes
// written. src and dst must not overlap.
func URLEncode(dst, src Span) (int32, error) {
	n := URLEncodedLength(src)
	if n > Capacity(dst) {
		return 0, result.ErrInsufficientSpanSize
	}
	out := dst[:n]
	i := int32(0)
	for _, b := range src {
		if isURLUnreserved(b) {
			out[i] = b
			i++
			continue
		}
		out[i] = '%'
		out[i+1] = hexDigits[b>>4]
		out[i+2] = hexDigits[b&0xf]
		i += 3
	}
	return n, nil
}
