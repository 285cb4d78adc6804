// Package config holds the machine description: board layout, kernel
// constants, user programs, initial processes and how the host runs it all.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"

	"trapos/board"
	"trapos/kernel"
	"trapos/machine"
	"trapos/user"
)

// Run modes.
const (
	ModeWindow   = "window"
	ModeHeadless = "headless"
)

// InitEntry is one process installed at reset.
type InitEntry struct {
	Program  string `json:"program" yaml:"program"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Run controls the host runner.
type Run struct {
	Mode         string `json:"mode" yaml:"mode"`
	Hz           int    `json:"hz" yaml:"hz"`
	Ticks        uint64 `json:"ticks" yaml:"ticks"`
	StepsPerTick int    `json:"stepsPerTick" yaml:"stepsPerTick"`
	TTY          string `json:"tty,omitempty" yaml:"tty,omitempty"`
	Width        int    `json:"width" yaml:"width"`
	Height       int    `json:"height" yaml:"height"`
}

// Trace selects kernel trace outputs.
type Trace struct {
	// Log writes [a->b] style lines to the host logger.
	Log bool `json:"log" yaml:"log"`
	// Spans lists the event kinds exported as OpenTelemetry spans
	// ("dispatch", "svc", "irq", "all"). Empty disables span export.
	Spans []string `json:"spans,omitempty" yaml:"spans,omitempty"`
	// Output is the span destination: "stderr", "stdout" or a file path.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// Config is the whole machine description.
type Config struct {
	Board    board.Config   `json:"board" yaml:"board"`
	Kernel   kernel.Config  `json:"kernel" yaml:"kernel"`
	Machine  machine.Config `json:"machine" yaml:"machine"`
	Programs user.Config    `json:"programs" yaml:"programs"`
	Init     []InitEntry    `json:"init" yaml:"init"`
	Run      Run            `json:"run" yaml:"run"`
	Trace    Trace          `json:"trace" yaml:"trace"`
}

// DefaultConfig boots the console alone on the reference platform, in a window.
func DefaultConfig() *Config {
	return &Config{
		Board:    board.DefaultConfig(),
		Kernel:   kernel.DefaultConfig(),
		Machine:  machine.DefaultConfig(),
		Programs: user.DefaultConfig(),
		Init:     []InitEntry{{Program: user.NameConsole}},
		Run: Run{
			Mode:         ModeWindow,
			Hz:           60,
			StepsPerTick: 2048,
			Width:        480,
			Height:       320,
		},
		Trace: Trace{Output: "stderr"},
	}
}

// Validate reports every inconsistent field.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Kernel.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("kernel: %w", err))
	}
	if err := c.Programs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("programs: %w", err))
	}
	if c.Board.TimerSource != c.Kernel.TimerSource {
		errs = append(errs, fmt.Errorf("board timer source %d does not match kernel timer source %d",
			c.Board.TimerSource, c.Kernel.TimerSource))
	}
	ramEnd := uint64(c.Board.RAMBase) + uint64(c.Board.RAMSize)
	inRAM := func(addr uint32) bool {
		return addr >= c.Board.RAMBase && uint64(addr) <= ramEnd
	}
	if !inRAM(c.Kernel.StackTop) {
		errs = append(errs, fmt.Errorf("kernel stack top 0x%08x outside RAM", c.Kernel.StackTop))
	}
	if !inRAM(c.Kernel.ShmBase) || !inRAM(c.Kernel.ShmFloor) {
		errs = append(errs, fmt.Errorf("shared memory [0x%08x, 0x%08x) outside RAM", c.Kernel.ShmBase, c.Kernel.ShmFloor))
	}
	if c.Machine.ImageBase >= c.Board.RAMBase && uint64(c.Machine.ImageBase) < ramEnd {
		errs = append(errs, fmt.Errorf("image base 0x%08x overlaps RAM", c.Machine.ImageBase))
	}

	if len(c.Init) == 0 {
		errs = append(errs, errors.New("init: at least one initial process is required"))
	}
	if len(c.Init) > c.Kernel.MaxProcs {
		errs = append(errs, fmt.Errorf("init: %d processes exceed %d slots", len(c.Init), c.Kernel.MaxProcs))
	}
	known := map[string]bool{}
	for _, name := range c.Programs.Names() {
		known[name] = true
	}
	for _, e := range c.Init {
		if !known[e.Program] {
			errs = append(errs, fmt.Errorf("init: unknown program %q", e.Program))
		}
	}

	switch c.Run.Mode {
	case ModeWindow, ModeHeadless:
	default:
		errs = append(errs, fmt.Errorf("run: unknown mode %q", c.Run.Mode))
	}
	if c.Run.Hz <= 0 {
		errs = append(errs, errors.New("run: hz must be positive"))
	}
	if c.Run.StepsPerTick <= 0 {
		errs = append(errs, errors.New("run: stepsPerTick must be positive"))
	}
	return errors.Join(errs...)
}

// Entries returns the initial processes as kernel entries, resolved in img.
func (c *Config) Entries(img *machine.Image) ([]kernel.Entry, error) {
	entries := make([]kernel.Entry, 0, len(c.Init))
	for _, e := range c.Init {
		pc, ok := img.Entry(e.Program)
		if !ok {
			return nil, fmt.Errorf("init: program %q not in image", e.Program)
		}
		entries = append(entries, kernel.Entry{PC: pc, Priority: e.Priority})
	}
	return entries, nil
}

// Load reads a YAML document from location (a path or any afs URL) over the
// defaults and validates the result.
func Load(ctx context.Context, location string) (*Config, error) {
	location = url.Normalize(location, file.Scheme)
	data, err := afs.New().DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", location, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", location, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
