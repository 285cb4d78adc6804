package machine

import (
	"fmt"

	"trapos/kernel"
)

// Memory is what user programs may touch directly.
type Memory interface {
	kernel.Memory
	Load32(addr uint32) (uint32, error)
	Store32(addr, v uint32) error
}

// CPU is the view a Program has of the processor while executing one step.
type CPU struct {
	frame *kernel.Context
	mem   Memory
	img   *Image
	entry uint32

	next uint32
	trap bool
	svc  uint32
	err  error
}

// Label returns the index of the instruction being executed.
func (c *CPU) Label() uint32 { return (c.frame.PC - c.entry) / InstrBytes }

// Jump continues at label l instead of the following instruction.
func (c *CPU) Jump(l uint32) { c.next = c.entry + l*InstrBytes }

// Reg returns general register n.
func (c *CPU) Reg(n int) uint32 { return c.frame.GPR[n] }

// SetReg writes general register n.
func (c *CPU) SetReg(n int, v uint32) { c.frame.GPR[n] = v }

// SP returns the stack pointer.
func (c *CPU) SP() uint32 { return c.frame.SP }

// Alloc lowers the stack pointer by n bytes, word aligned, and returns the
// new stack pointer.
func (c *CPU) Alloc(n uint32) uint32 {
	c.frame.SP -= alignUp(n, 4)
	return c.frame.SP
}

// Entry resolves a program name to its entry point.
func (c *CPU) Entry(name string) (uint32, bool) { return c.img.Entry(name) }

// SVC issues a supervisor call with up to three arguments once the step ends.
func (c *CPU) SVC(id uint32, args ...uint32) {
	if len(args) > 3 {
		panic(fmt.Sprintf("svc %#x: %d arguments", id, len(args)))
	}
	for i, a := range args {
		c.frame.GPR[i] = a
	}
	c.trap = true
	c.svc = id
}

// Push stores v below the stack pointer.
func (c *CPU) Push(v uint32) {
	sp := c.frame.SP - 4
	if c.fault(c.mem.Store32(sp, v)) {
		return
	}
	c.frame.SP = sp
}

// Pop loads the word at the stack pointer.
func (c *CPU) Pop() uint32 {
	v, err := c.mem.Load32(c.frame.SP)
	if c.fault(err) {
		return 0
	}
	c.frame.SP += 4
	return v
}

// Peek reads the stack word n slots above the stack pointer.
func (c *CPU) Peek(n uint32) uint32 {
	v, err := c.mem.Load32(c.frame.SP + 4*n)
	c.fault(err)
	return v
}

// Poke writes the stack word n slots above the stack pointer.
func (c *CPU) Poke(n, v uint32) {
	c.fault(c.mem.Store32(c.frame.SP+4*n, v))
}

// Stage copies b just below the stack pointer without moving it and returns
// its address. The bytes are valid until the next push.
func (c *CPU) Stage(b []byte) uint32 {
	addr := (c.frame.SP - uint32(len(b))) &^ 3
	c.fault(c.mem.Write(addr, b))
	return addr
}

// Read copies memory at addr into p.
func (c *CPU) Read(addr uint32, p []byte) {
	c.fault(c.mem.Read(addr, p))
}

// Write copies p to memory at addr.
func (c *CPU) Write(addr uint32, p []byte) {
	c.fault(c.mem.Write(addr, p))
}

// Load32 reads a word of memory.
func (c *CPU) Load32(addr uint32) uint32 {
	v, err := c.mem.Load32(addr)
	c.fault(err)
	return v
}

// Store32 writes a word of memory.
func (c *CPU) Store32(addr, v uint32) {
	c.fault(c.mem.Store32(addr, v))
}

func (c *CPU) fault(err error) bool {
	if err == nil {
		return false
	}
	if c.err == nil {
		c.err = err
	}
	return true
}
