package user

import (
	"trapos/kernel"
	"trapos/machine"
)

// Sharer maps a one-word region, forks, and has parent and child each add
// Rounds to the shared counter, yielding after every increment. The parent
// waits for both contributions, prints the total, unlinks the region and
// exits.
type Sharer struct {
	Rounds uint32 `json:"rounds" yaml:"rounds"`
}

const (
	rFD    = 4
	rAddr  = 5
	rRole  = 6 // fork result: 0 in the child
	rBumps = 7
)

const (
	shOpen = iota
	shMap
	shFork
	shRole
	shBump
	shDone
	shWait
	shReport
	shUnlink
	shExit
	shLen
)

func (s *Sharer) Len() uint32 { return shLen }

func (s *Sharer) rounds() uint32 { return max(s.Rounds, 1) }

func (s *Sharer) Step(cpu *machine.CPU) {
	switch cpu.Label() {
	case shOpen:
		cpu.SetReg(rBumps, 0)
		cpu.SVC(kernel.SysShmOpen, 4)

	case shMap:
		fd := cpu.Reg(0)
		if fd == kernel.Failure {
			puts(cpu, "sharer: no region\n")
			cpu.Jump(shExit)
			return
		}
		cpu.SetReg(rFD, fd)
		cpu.SVC(kernel.SysMmap, fd)

	case shFork:
		cpu.SetReg(rAddr, cpu.Reg(0))
		cpu.SVC(kernel.SysFork)

	case shRole:
		cpu.SetReg(rRole, cpu.Reg(0))

	case shBump:
		addr := cpu.Reg(rAddr)
		cpu.Store32(addr, cpu.Load32(addr)+1)
		n := cpu.Reg(rBumps) + 1
		cpu.SetReg(rBumps, n)
		if n < s.rounds() {
			cpu.SVC(kernel.SysYield)
			cpu.Jump(shBump)
		}

	case shDone:
		if cpu.Reg(rRole) == 0 {
			cpu.SVC(kernel.SysExit)
		}

	case shWait:
		want := 2 * s.rounds()
		if cpu.Reg(rRole) == kernel.Failure {
			want = s.rounds()
		}
		if cpu.Load32(cpu.Reg(rAddr)) < want {
			cpu.SVC(kernel.SysYield)
			cpu.Jump(shWait)
		}

	case shReport:
		putf(cpu, "sharer: counter %d\n", cpu.Load32(cpu.Reg(rAddr)))

	case shUnlink:
		cpu.SVC(kernel.SysShmUnlink, cpu.Reg(rFD))

	case shExit:
		cpu.SVC(kernel.SysExit)
	}
}
