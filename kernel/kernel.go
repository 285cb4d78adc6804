package kernel

import (
	"errors"
	"fmt"
)

// Config fixes the sizes and addresses of the kernel's arenas.
//
// All tables are allocated once by New and never grow.
type Config struct {
	MaxProcs   int    `json:"maxProcs" yaml:"maxProcs"`
	SlotSize   uint32 `json:"slotSize" yaml:"slotSize"`
	StackTop   uint32 `json:"stackTop" yaml:"stackTop"`
	MaxRegions int    `json:"maxRegions" yaml:"maxRegions"`
	ShmBase    uint32 `json:"shmBase" yaml:"shmBase"`
	ShmFloor   uint32 `json:"shmFloor" yaml:"shmFloor"`

	TimerLoad   uint32 `json:"timerLoad" yaml:"timerLoad"`
	TimerSource uint32 `json:"timerSource" yaml:"timerSource"`

	DefaultPriority int `json:"defaultPriority" yaml:"defaultPriority"`
}

// DefaultConfig returns the reference platform layout.
func DefaultConfig() Config {
	return Config{
		MaxProcs:        20,
		SlotSize:        0x00001000,
		StackTop:        0x70080000,
		MaxRegions:      20,
		ShmBase:         0x700A0000,
		ShmFloor:        0x70090000,
		TimerLoad:       0x00100000, // 2^20 ticks
		TimerSource:     36,
		DefaultPriority: 1,
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c Config) Validate() error {
	var errs []error
	if c.MaxProcs <= 0 {
		errs = append(errs, fmt.Errorf("maxProcs must be > 0"))
	}
	if c.SlotSize == 0 {
		errs = append(errs, fmt.Errorf("slotSize must be > 0"))
	}
	if c.MaxProcs > 0 && uint64(c.MaxProcs)*uint64(c.SlotSize) > uint64(c.StackTop) {
		errs = append(errs, fmt.Errorf("stackTop %#x too low for %d slots of %#x", c.StackTop, c.MaxProcs, c.SlotSize))
	}
	if c.MaxRegions < 0 {
		errs = append(errs, fmt.Errorf("maxRegions must be >= 0"))
	}
	if c.ShmFloor > c.ShmBase {
		errs = append(errs, fmt.Errorf("shmFloor %#x above shmBase %#x", c.ShmFloor, c.ShmBase))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
}

// Memory is the physical address space shared by all processes.
type Memory interface {
	Read(addr uint32, p []byte) error
	Write(addr uint32, p []byte) error
	Copy(dst, src, n uint32) error
	Zero(addr, n uint32) error
}

// Console is the serial device behind the write syscall.
type Console interface {
	// PutByte blocks until the device accepts b.
	PutByte(b byte)
}

// ConsoleReader is implemented by consoles that can receive input.
type ConsoleReader interface {
	TryGetByte() (byte, bool)
}

// InterruptController is the subset of the GIC the kernel drives.
type InterruptController interface {
	Acknowledge() uint32
	EndOfInterrupt(id uint32)
	SetPriorityMask(mask uint32)
	EnableSource(id uint32)
	Enable()
}

// Timer is the periodic tick source.
type Timer interface {
	Configure(load uint32)
	ClearInterrupt()
}

// Kernel owns the process table, the region table and the executing slot.
//
// Every method runs to completion inside a single trap; there is no internal
// locking and callers must not invoke it concurrently.
type Kernel struct {
	cfg Config

	procs   []PCB
	regions []Region
	current Slot

	halted bool

	mem     Memory
	console Console
	gic     InterruptController
	timer   Timer
	trace   Tracer
}

// Option configures a Kernel.
type Option func(k *Kernel)

// WithMemory sets the physical memory.
func WithMemory(m Memory) Option {
	return func(k *Kernel) { k.mem = m }
}

// WithConsole sets the console device.
func WithConsole(c Console) Option {
	return func(k *Kernel) { k.console = c }
}

// WithInterruptController sets the interrupt controller.
func WithInterruptController(ic InterruptController) Option {
	return func(k *Kernel) { k.gic = ic }
}

// WithTimer sets the periodic timer.
func WithTimer(t Timer) Option {
	return func(k *Kernel) { k.timer = t }
}

// WithTracer sets the event tracer.
func WithTracer(t Tracer) Option {
	return func(k *Kernel) {
		if t != nil {
			k.trace = t
		}
	}
}

// New creates a kernel with empty tables.
func New(cfg Config, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:     cfg,
		procs:   make([]PCB, cfg.MaxProcs),
		regions: make([]Region, cfg.MaxRegions),
		current: NoSlot,
		trace:   nopTracer{},
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.mem == nil {
		return nil, fmt.Errorf("%w: memory is required", ErrConfig)
	}
	k.invalidateAll()
	return k, nil
}

// Config returns the kernel configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Current returns the executing slot.
func (k *Kernel) Current() (Slot, bool) {
	return k.current, k.current != NoSlot
}

// Halted reports whether the last scheduling point found nothing to run.
func (k *Kernel) Halted() bool { return k.halted }

func (k *Kernel) executing() *PCB {
	if k.current == NoSlot {
		return nil
	}
	return &k.procs[k.current]
}
