package user

import (
	"trapos/kernel"
	"trapos/machine"
)

// Dining runs the dining philosophers over a shared region. Word i of the
// region is chopstick i (0 when on the table, owner id+1 when held) and the
// word after the last chopstick counts philosophers that have finished.
//
// Philosopher 0 is the process that was started; it forks the others. A
// philosopher picks up both chopsticks in one step or none, so the table
// cannot deadlock.
type Dining struct {
	Philosophers uint32 `json:"philosophers" yaml:"philosophers"`
	Meals        uint32 `json:"meals" yaml:"meals"`
}

const (
	rID     = 4
	rMeals  = 5
	rTable  = 6
	rBase   = 7
	rSpawnN = 8
)

const (
	dnOpen = iota
	dnMap
	dnSetup
	dnSpawn
	dnForked
	dnTake
	dnEat
	dnPut
	dnDone
	dnWait
	dnClear
	dnUnlink
	dnExit
	dnLen
)

func (d *Dining) Len() uint32 { return dnLen }

func (d *Dining) seats() uint32 { return max(d.Philosophers, 1) }

func (d *Dining) chopsticks(cpu *machine.CPU) (left, right uint32) {
	id, base := cpu.Reg(rID), cpu.Reg(rBase)
	return base + 4*id, base + 4*((id+1)%d.seats())
}

func (d *Dining) finished(cpu *machine.CPU) uint32 {
	return cpu.Reg(rBase) + 4*d.seats()
}

func (d *Dining) Step(cpu *machine.CPU) {
	switch cpu.Label() {
	case dnOpen:
		cpu.SVC(kernel.SysShmOpen, 4*(d.seats()+1))

	case dnMap:
		fd := cpu.Reg(0)
		if fd == kernel.Failure {
			puts(cpu, "dining: no table\n")
			cpu.Jump(dnExit)
			return
		}
		cpu.SetReg(rTable, fd)
		cpu.SVC(kernel.SysMmap, fd)

	case dnSetup:
		cpu.SetReg(rBase, cpu.Reg(0))
		cpu.SetReg(rID, 0)
		cpu.SetReg(rMeals, 0)
		cpu.SetReg(rSpawnN, 1)

	case dnSpawn:
		if cpu.Reg(rSpawnN) >= d.seats() {
			cpu.Jump(dnTake)
			return
		}
		cpu.SVC(kernel.SysFork)

	case dnForked:
		next := cpu.Reg(rSpawnN)
		switch cpu.Reg(0) {
		case 0:
			cpu.SetReg(rID, next)
			cpu.Jump(dnTake)
			return
		case kernel.Failure:
			// the missing philosopher counts as finished
			done := d.finished(cpu)
			cpu.Store32(done, cpu.Load32(done)+1)
		}
		cpu.SetReg(rSpawnN, next+1)
		cpu.Jump(dnSpawn)

	case dnTake:
		left, right := d.chopsticks(cpu)
		if cpu.Load32(left) == 0 && cpu.Load32(right) == 0 {
			owner := cpu.Reg(rID) + 1
			cpu.Store32(left, owner)
			cpu.Store32(right, owner)
			return
		}
		cpu.SVC(kernel.SysYield)
		cpu.Jump(dnTake)

	case dnEat:
		m := cpu.Reg(rMeals) + 1
		cpu.SetReg(rMeals, m)
		putf(cpu, "phil %d eats %d\n", cpu.Reg(rID), m)

	case dnPut:
		left, right := d.chopsticks(cpu)
		cpu.Store32(left, 0)
		cpu.Store32(right, 0)
		if cpu.Reg(rMeals) < max(d.Meals, 1) {
			cpu.SVC(kernel.SysYield)
			cpu.Jump(dnTake)
		}

	case dnDone:
		done := d.finished(cpu)
		cpu.Store32(done, cpu.Load32(done)+1)
		if cpu.Reg(rID) != 0 {
			cpu.SVC(kernel.SysExit)
		}

	case dnWait:
		if cpu.Load32(d.finished(cpu)) < d.seats() {
			cpu.SVC(kernel.SysYield)
			cpu.Jump(dnWait)
		}

	case dnClear:
		puts(cpu, "dining: table cleared\n")

	case dnUnlink:
		cpu.SVC(kernel.SysShmUnlink, cpu.Reg(rTable))

	case dnExit:
		cpu.SVC(kernel.SysExit)
	}
}
