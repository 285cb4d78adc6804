package user

import (
	"strconv"
	"strings"

	"trapos/kernel"
	"trapos/machine"
)

// Spawn is one program the console starts at boot.
type Spawn struct {
	Program  string `json:"program" yaml:"program"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Console is the launcher and line shell. It forks and execs its spawn list,
// then reads commands from the console:
//
//	run NAME        fork and exec NAME
//	kill PID        terminate PID
//	nice PID PRIO   set the priority of PID
type Console struct {
	Spawn []Spawn `json:"spawn" yaml:"spawn"`
}

// lineMax bytes at the stack pointer hold the line being edited.
const lineMax = 64

const (
	rIndex = 4 // next spawn list entry
	rLine  = 5 // bytes in the line buffer
)

const (
	conInit = iota
	conSpawn
	conSpawned
	conNext
	conExec
	conExit
	conPrompt
	conRead
	conGot
	conLine
	conForked
	conLen
)

func (c *Console) Len() uint32 { return conLen }

func (c *Console) Step(cpu *machine.CPU) {
	switch cpu.Label() {
	case conInit:
		cpu.Alloc(lineMax)
		cpu.SetReg(rIndex, 0)
		cpu.SetReg(rLine, 0)

	case conSpawn:
		if int(cpu.Reg(rIndex)) >= len(c.Spawn) {
			cpu.Jump(conPrompt)
			return
		}
		cpu.SVC(kernel.SysFork)

	case conSpawned:
		switch pid := cpu.Reg(0); pid {
		case 0:
			cpu.Jump(conExec)
		case kernel.Failure:
			puts(cpu, "console: fork failed\n")
		default:
			if prio := c.Spawn[cpu.Reg(rIndex)].Priority; prio != 0 {
				cpu.SVC(kernel.SysNice, pid, uint32(int32(prio)))
			}
		}

	case conNext:
		cpu.SetReg(rIndex, cpu.Reg(rIndex)+1)
		cpu.Jump(conSpawn)

	case conExec:
		name := c.target(cpu)
		if pc, ok := cpu.Entry(name); ok {
			cpu.SVC(kernel.SysExec, pc)
			return
		}
		putf(cpu, "console: no program %q\n", name)

	case conExit:
		cpu.SVC(kernel.SysExit)

	case conPrompt:
		cpu.SetReg(rLine, 0)
		puts(cpu, "$ ")

	case conRead:
		cpu.SVC(kernel.SysRead, 0, cpu.SP()-4, 1)

	case conGot:
		if cpu.Reg(0) != 1 {
			cpu.SVC(kernel.SysYield)
			cpu.Jump(conRead)
			return
		}
		var b [1]byte
		cpu.Read(cpu.SP()-4, b[:])
		c.edit(cpu, b[0])

	case conLine:
		c.command(cpu)

	case conForked:
		switch cpu.Reg(0) {
		case 0:
			cpu.Jump(conExec)
		case kernel.Failure:
			puts(cpu, "console: fork failed\n")
			cpu.Jump(conPrompt)
		default:
			cpu.Jump(conPrompt)
		}
	}
}

func (c *Console) edit(cpu *machine.CPU, ch byte) {
	n := cpu.Reg(rLine)
	switch {
	case ch == '\r' || ch == '\n':
		puts(cpu, "\n")
		cpu.Jump(conLine)
		return
	case ch == 0x08 || ch == 0x7f:
		if n > 0 {
			cpu.SetReg(rLine, n-1)
			puts(cpu, "\b \b")
		}
	case ch < ' ':
		// other control characters are dropped
	case n < lineMax:
		cpu.Write(cpu.SP()+n, []byte{ch})
		cpu.SetReg(rLine, n+1)
		puts(cpu, string([]byte{ch}))
	}
	cpu.Jump(conRead)
}

func (c *Console) line(cpu *machine.CPU) []string {
	buf := make([]byte, cpu.Reg(rLine))
	cpu.Read(cpu.SP(), buf)
	return strings.Fields(string(buf))
}

// target is the program a forked child should exec: the spawn list entry
// during boot, the argument of a run command afterwards.
func (c *Console) target(cpu *machine.CPU) string {
	if f := c.line(cpu); len(f) == 2 {
		return f[1]
	}
	if i := int(cpu.Reg(rIndex)); i < len(c.Spawn) {
		return c.Spawn[i].Program
	}
	return ""
}

func (c *Console) command(cpu *machine.CPU) {
	f := c.line(cpu)
	if len(f) == 0 {
		cpu.Jump(conPrompt)
		return
	}
	switch {
	case f[0] == "run" && len(f) == 2:
		cpu.SVC(kernel.SysFork)
		return
	case f[0] == "kill" && len(f) == 2:
		if pid, ok := number(f[1]); ok {
			cpu.SVC(kernel.SysKill, pid)
			break
		}
		puts(cpu, "console: bad pid\n")
	case f[0] == "nice" && len(f) == 3:
		pid, ok1 := number(f[1])
		prio, ok2 := number(f[2])
		if ok1 && ok2 {
			cpu.SVC(kernel.SysNice, pid, prio)
			break
		}
		puts(cpu, "console: bad argument\n")
	default:
		puts(cpu, "usage: run NAME | kill PID | nice PID PRIO\n")
	}
	cpu.Jump(conPrompt)
}

func number(s string) (uint32, bool) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(int32(v)), true
}
