// Package credentials implements the authentication capabilities the
// HTTP and MQTT pipelines attach to outbound traffic: a spinlock-backed
// token cache, the AAD client-secret flow and shared-access-signature
// generation.
package credentials

import "github.com/amenzhinsky/azcore/spinlock"

// TokenBufferSize bounds the stored token including the scheme prefix.
const TokenBufferSize = 2 * 1024

// Token is a fixed-capacity authorization token with an absolute expiry
// in monotonic milliseconds.
type Token struct {
	buf       [TokenBufferSize]byte
	length    int16
	expiresAt int64
}

// Bytes returns the token content.
func (t *Token) Bytes() []byte {
	return t.buf[:t.length]
}

// set replaces the token content; content longer than the buffer is an
// insufficient-size failure at the call site.
func (t *Token) set(content []byte, expiresAtMs int64) {
	t.length = int16(copy(t.buf[:], content))
	t.expiresAt = expiresAtMs
}

// Expired reports whether the token needs to be re-acquired.
func (t *Token) Expired(nowMs int64) bool {
	return t.expiresAt <= 0 || t.expiresAt < nowMs
}

// tokenCache guards a token with the reader/writer spinlock. Both
// accessors copy, so callers never use the shared buffer outside the
// lock, and neither lock is ever held across I/O.
type tokenCache struct {
	lock  spinlock.Lock
	token Token
}

func (c *tokenCache) setToken(t *Token) {
	c.lock.EnterWriter()
	c.token = *t
	c.lock.ExitWriter()
}

func (c *tokenCache) getToken(out *Token) {
	c.lock.EnterReader()
	*out = c.token
	c.lock.ExitReader()
}

func (c *tokenCache) clear() {
	c.lock.EnterWriter()
	c.token = Token{}
	c.lock.ExitWriter()
}
