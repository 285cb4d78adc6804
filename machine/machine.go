// Package machine is the trap trampoline: it owns the live register frame,
// executes user programs one instruction at a time, advances the timer and
// enters the kernel on supervisor calls and interrupts.
package machine

import (
	"context"
	"errors"
	"fmt"

	"trapos/board"
	"trapos/hal"
	"trapos/kernel"
)

var (
	// ErrHalted is returned once the kernel has nothing left to run.
	ErrHalted = errors.New("machine halted")
	// ErrPanic is returned after a program step panicked.
	ErrPanic = errors.New("machine panic")
	// ErrAbort is returned when a process executes outside the image or
	// touches unmapped memory.
	ErrAbort = errors.New("process abort")
)

// Config controls instruction timing.
type Config struct {
	ImageBase     uint32 `json:"imageBase" yaml:"imageBase"`
	CyclesPerStep uint32 `json:"cyclesPerStep" yaml:"cyclesPerStep"`
}

// DefaultConfig returns 4096 timer cycles per instruction, so a 2^20 timer
// period is 256 instructions.
func DefaultConfig() Config {
	return Config{
		ImageBase:     0x00008000,
		CyclesPerStep: 0x1000,
	}
}

// Machine runs one kernel on one board.
type Machine struct {
	cfg   Config
	board *board.Board
	k     *kernel.Kernel
	img   *Image
	log   hal.Logger

	frame  kernel.Context
	booted bool

	steps uint64
	svcs  uint64
	irqs  uint64

	panic panicState
}

// Option configures a Machine.
type Option func(m *Machine)

// WithLogger sets the lifecycle logger.
func WithLogger(l hal.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// New creates a machine. The kernel must have been built on b's devices.
func New(cfg Config, b *board.Board, k *kernel.Kernel, img *Image, opts ...Option) *Machine {
	if cfg.CyclesPerStep == 0 {
		cfg.CyclesPerStep = DefaultConfig().CyclesPerStep
	}
	m := &Machine{cfg: cfg, board: b, k: k, img: img}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kernel returns the kernel driven by the machine.
func (m *Machine) Kernel() *kernel.Kernel { return m.k }

// Image returns the loaded text image.
func (m *Machine) Image() *Image { return m.img }

// Frame returns a copy of the live register frame.
func (m *Machine) Frame() kernel.Context { return m.frame }

// Steps returns the number of executed instructions.
func (m *Machine) Steps() uint64 { return m.steps }

// Stats returns instruction, syscall and interrupt counts.
func (m *Machine) Stats() (steps, svcs, irqs uint64) { return m.steps, m.svcs, m.irqs }

func (m *Machine) logf(format string, args ...any) {
	if m.log != nil {
		m.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}

// Boot raises reset with the named programs as initial processes.
func (m *Machine) Boot(programs ...kernel.Entry) error {
	m.frame = kernel.Context{}
	if err := m.k.Reset(&m.frame, programs...); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	m.booted = true
	m.logf("machine: reset with %d initial process(es), entry 0x%08x", len(programs), m.frame.PC)
	return nil
}

// BootNamed boots with image programs looked up by name, all at the default priority.
func (m *Machine) BootNamed(names ...string) error {
	entries := make([]kernel.Entry, 0, len(names))
	for _, name := range names {
		pc, ok := m.img.Entry(name)
		if !ok {
			return fmt.Errorf("boot: program %q not in image", name)
		}
		entries = append(entries, kernel.Entry{PC: pc})
	}
	return m.Boot(entries...)
}

func (m *Machine) currentPID() kernel.PID {
	if slot, ok := m.k.Current(); ok {
		if p, ok := m.k.Proc(slot); ok {
			return p.PID
		}
	}
	return kernel.NoPID
}

// Step executes one instruction of the current process, or takes a pending
// interrupt instead when IRQs are unmasked.
func (m *Machine) Step() (err error) {
	if !m.booted {
		return fmt.Errorf("machine: not booted")
	}
	if m.InPanicMode() {
		return ErrPanic
	}
	if m.k.Halted() {
		return ErrHalted
	}

	if m.frame.IRQEnabled() && m.board.GIC.Pending() {
		m.irqs++
		m.k.IRQ(&m.frame)
		return nil
	}

	seg, ok := m.img.find(m.frame.PC)
	if !ok {
		return fmt.Errorf("%w: pid %d prefetch at 0x%08x", ErrAbort, m.currentPID(), m.frame.PC)
	}

	cpu := CPU{
		frame: &m.frame,
		mem:   m.board.RAM,
		img:   m.img,
		entry: seg.entry,
		next:  m.frame.PC + InstrBytes,
	}

	defer func() {
		if r := recover(); r != nil {
			m.triggerPanic(PanicInfo{PID: m.currentPID(), PC: m.frame.PC, Value: r})
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	seg.prog.Step(&cpu)
	if cpu.err != nil {
		return fmt.Errorf("%w: pid %d at %s+%#x: %w", ErrAbort, m.currentPID(), seg.name, m.frame.PC-seg.entry, cpu.err)
	}

	m.frame.PC = cpu.next
	m.steps++
	m.board.Timer.Advance(m.cfg.CyclesPerStep)

	if cpu.trap {
		m.svcs++
		m.k.SVC(&m.frame, cpu.svc)
		if m.k.Halted() {
			m.logf("machine: halted after %d steps", m.steps)
		}
	}
	return nil
}

// Run executes up to n steps. It stops early on error or when ctx is done.
func (m *Machine) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if i&0xFF == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}
