package board

import (
	"io"
	"sync"
)

const rxFIFOBytes = 256

// UART models a PL011 console. Transmit is synchronous: PutByte returns once
// the byte has been handed to every sink. Receive is a bounded FIFO filled
// from the host side.
type UART struct {
	mu    sync.Mutex
	sinks []io.Writer
	tx    uint64

	rx      [rxFIFOBytes]byte
	rxHead  int
	rxCount int
	dropped uint64
}

// NewUART returns a console that writes to sinks.
func NewUART(sinks ...io.Writer) *UART {
	return &UART{sinks: sinks}
}

// Attach adds another transmit sink.
func (u *UART) Attach(w io.Writer) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sinks = append(u.sinks, w)
}

// PutByte transmits b.
func (u *UART) PutByte(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	one := [1]byte{b}
	for _, w := range u.sinks {
		_, _ = w.Write(one[:])
	}
	u.tx++
}

// Transmitted returns the number of bytes sent.
func (u *UART) Transmitted() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tx
}

// Receive queues host input. Bytes beyond the FIFO depth are dropped.
func (u *UART) Receive(p []byte) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, b := range p {
		if u.rxCount == rxFIFOBytes {
			u.dropped += uint64(len(p) - n)
			break
		}
		u.rx[(u.rxHead+u.rxCount)%rxFIFOBytes] = b
		u.rxCount++
		n++
	}
	return n
}

// TryGetByte pops one received byte.
func (u *UART) TryGetByte() (byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.rxCount == 0 {
		return 0, false
	}
	b := u.rx[u.rxHead]
	u.rxHead = (u.rxHead + 1) % rxFIFOBytes
	u.rxCount--
	return b, true
}
