package kernel

import (
	"encoding/binary"
	"fmt"
)

// NumGPR is the number of general purpose registers in a trap frame.
const NumGPR = 13

// FrameSize is the encoded size of a Context in bytes.
const FrameSize = (NumGPR + 4) * 4

// Processor status values used by the reset handler.
const (
	// ModeUSR selects user mode with IRQ and FIQ unmasked.
	ModeUSR uint32 = 0x50

	// CPSRIRQMask is set while IRQs are masked.
	CPSRIRQMask uint32 = 1 << 7
)

// Context is the register frame captured at a trap boundary.
//
// Field order matches what the trampoline pushes: cpsr, pc, gpr[0..12], sp, lr.
type Context struct {
	CPSR uint32
	PC   uint32
	GPR  [NumGPR]uint32
	SP   uint32
	LR   uint32
}

// Arg returns argument register n (r0..r2 carry syscall arguments).
func (c *Context) Arg(n int) uint32 { return c.GPR[n] }

// SetResult stores a syscall result in r0.
func (c *Context) SetResult(v uint32) { c.GPR[0] = v }

// SetError stores -1 in r0.
func (c *Context) SetError() { c.GPR[0] = Failure }

// IRQEnabled reports whether IRQs are unmasked in the saved status.
func (c *Context) IRQEnabled() bool { return c.CPSR&CPSRIRQMask == 0 }

// MarshalBinary encodes the frame in trampoline order, little-endian.
func (c *Context) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	c.put(b)
	return b, nil
}

// UnmarshalBinary decodes a frame produced by the trampoline.
func (c *Context) UnmarshalBinary(b []byte) error {
	if len(b) != FrameSize {
		return fmt.Errorf("trap frame: got %d bytes, want %d", len(b), FrameSize)
	}
	le := binary.LittleEndian
	c.CPSR = le.Uint32(b[0:])
	c.PC = le.Uint32(b[4:])
	for i := range c.GPR {
		c.GPR[i] = le.Uint32(b[8+4*i:])
	}
	c.SP = le.Uint32(b[8+4*NumGPR:])
	c.LR = le.Uint32(b[12+4*NumGPR:])
	return nil
}

func (c *Context) put(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], c.CPSR)
	le.PutUint32(b[4:], c.PC)
	for i, r := range c.GPR {
		le.PutUint32(b[8+4*i:], r)
	}
	le.PutUint32(b[8+4*NumGPR:], c.SP)
	le.PutUint32(b[12+4*NumGPR:], c.LR)
}
