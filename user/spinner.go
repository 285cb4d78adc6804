package user

import (
	"trapos/kernel"
	"trapos/machine"
)

// Spinner is CPU bound: it never yields and only loses the processor to the
// timer. Every Every iterations it prints its tag and round number, and it
// exits after Rounds reports unless Rounds is zero.
type Spinner struct {
	Name   string `json:"name" yaml:"name"`
	Tag    string `json:"tag" yaml:"tag"`
	Every  uint32 `json:"every" yaml:"every"`
	Rounds uint32 `json:"rounds,omitempty" yaml:"rounds,omitempty"`
}

const (
	rCount  = 4
	rReport = 5
)

const (
	spinInit = iota
	spinCount
	spinReport
	spinCheck
	spinLen
)

func (s *Spinner) Len() uint32 { return spinLen }

func (s *Spinner) Step(cpu *machine.CPU) {
	switch cpu.Label() {
	case spinInit:
		cpu.SetReg(rCount, 0)
		cpu.SetReg(rReport, 0)

	case spinCount:
		n := cpu.Reg(rCount) + 1
		cpu.SetReg(rCount, n)
		if n%max(s.Every, 1) != 0 {
			cpu.Jump(spinCount)
		}

	case spinReport:
		r := cpu.Reg(rReport) + 1
		cpu.SetReg(rReport, r)
		putf(cpu, "%s%d\n", s.Tag, r)

	case spinCheck:
		if s.Rounds != 0 && cpu.Reg(rReport) >= s.Rounds {
			cpu.SVC(kernel.SysExit)
			return
		}
		cpu.Jump(spinCount)
	}
}
