// Package user holds the programs that run as processes on the machine.
//
// Programs keep their state in r3..r12, the program counter and their stack.
// r0..r2 carry system call arguments and results and do not survive a call.
package user

import (
	"errors"
	"fmt"

	"trapos/kernel"
	"trapos/machine"
)

// Program names in the image.
const (
	NameConsole = "console"
	NameSharer  = "sharer"
	NameDining  = "dining"
)

// Config selects and parameterizes the loaded programs.
type Config struct {
	Console  Console   `json:"console" yaml:"console"`
	Spinners []Spinner `json:"spinners" yaml:"spinners"`
	Sharer   Sharer    `json:"sharer" yaml:"sharer"`
	Dining   Dining    `json:"dining" yaml:"dining"`
}

// DefaultConfig starts the shared counter, five philosophers and two spinners
// from the console.
func DefaultConfig() Config {
	return Config{
		Console: Console{Spawn: []Spawn{
			{Program: "spin-a"},
			{Program: "spin-b", Priority: 2},
			{Program: NameSharer},
			{Program: NameDining},
		}},
		Spinners: []Spinner{
			{Name: "spin-a", Tag: "A", Every: 64, Rounds: 8},
			{Name: "spin-b", Tag: "B", Every: 96, Rounds: 8},
		},
		Sharer: Sharer{Rounds: 16},
		Dining: Dining{Philosophers: 5, Meals: 3},
	}
}

// Names returns the image names in load order.
func (c Config) Names() []string {
	names := []string{NameConsole}
	for _, s := range c.Spinners {
		names = append(names, s.Name)
	}
	return append(names, NameSharer, NameDining)
}

// Validate reports every inconsistent field.
func (c Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for _, name := range c.Names() {
		if name == "" {
			errs = append(errs, errors.New("spinner without a name"))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("program %q defined twice", name))
		}
		seen[name] = true
	}
	for _, s := range c.Spinners {
		if s.Every == 0 {
			errs = append(errs, fmt.Errorf("spinner %q: every must be positive", s.Name))
		}
	}
	for _, sp := range c.Console.Spawn {
		if !seen[sp.Program] {
			errs = append(errs, fmt.Errorf("console spawns unknown program %q", sp.Program))
		}
	}
	if c.Dining.Philosophers == 0 {
		errs = append(errs, errors.New("dining: philosophers must be positive"))
	}
	return errors.Join(errs...)
}

type named struct {
	name string
	prog machine.Program
}

// Load places every configured program in img.
func Load(img *machine.Image, c Config) error {
	progs := []named{{NameConsole, &c.Console}}
	for i := range c.Spinners {
		progs = append(progs, named{c.Spinners[i].Name, &c.Spinners[i]})
	}
	progs = append(progs, named{NameSharer, &c.Sharer}, named{NameDining, &c.Dining})

	for _, p := range progs {
		if _, err := img.Load(p.name, p.prog); err != nil {
			return err
		}
	}
	return nil
}

func puts(cpu *machine.CPU, s string) {
	cpu.SVC(kernel.SysWrite, 1, cpu.Stage([]byte(s)), uint32(len(s)))
}

func putf(cpu *machine.CPU, format string, args ...any) {
	puts(cpu, fmt.Sprintf(format, args...))
}
