// Package spinlock implements the reader/writer spinlock guarding the
// token cache. A single 32-bit word holds the whole state: bit 31 marks
// an active writer, bit 30 a waiting writer, the low 30 bits count
// active readers. Built purely on the platform compare-and-exchange;
// no OS calls.
package spinlock

import (
	"sync/atomic"

	"github.com/amenzhinsky/azcore/platform"
)

const (
	writerBit     = int32(-0x80000000)
	waitingBit    = int32(0x40000000)
	writerBits    = writerBit | waitingBit
	readerBitMask = ^writerBits
)

// Lock is a reader/writer spinlock. The zero value is an unlocked lock.
type Lock struct {
	state int32
}

// EnterWriter spins until exclusive ownership is acquired. While
// spinning it sets the waiting bit to stop new readers from entering.
func (l *Lock) EnterWriter() {
	for {
		state := atomic.LoadInt32(&l.state)

		// Free, or only a waiting writer left: try to take ownership.
		if (state == 0 || state == waitingBit) &&
			platform.AtomicCompareExchange(&l.state, state, writerBit) {
			return
		}

		// Otherwise announce the writer so readers stop accumulating.
		if state&waitingBit == 0 &&
			platform.AtomicCompareExchange(&l.state, state, state|waitingBit) {
			continue
		}
	}
}

// ExitWriter releases exclusive ownership, preserving the waiting bit
// so a queued writer beats new readers.
func (l *Lock) ExitWriter() {
	for {
		state := atomic.LoadInt32(&l.state)
		if platform.AtomicCompareExchange(&l.state, state, state&waitingBit) {
			return
		}
	}
}

// EnterReader spins until shared ownership is acquired. Readers are
// held off while either writer bit is set.
func (l *Lock) EnterReader() {
	for {
		state := atomic.LoadInt32(&l.state)
		if state&writerBits == 0 &&
			platform.AtomicCompareExchange(&l.state, state, state+1) {
			return
		}
	}
}

// ExitReader releases shared ownership, preserving the waiting bit.
func (l *Lock) ExitReader() {
	for {
		state := atomic.LoadInt32(&l.state)
		readers := state & readerBitMask
		next := (readers - 1) | (state & waitingBit)
		if platform.AtomicCompareExchange(&l.state, state, next) {
			return
		}
	}
}
