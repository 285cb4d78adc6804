package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapos/board"
)

func TestResetInstallsInitialProcesses(t *testing.T) {
	f := newFixture(t)
	f.frame = Context{PC: 0xFFFF0000, GPR: [NumGPR]uint32{1, 2, 3}}

	require.NoError(t, f.k.Reset(&f.frame, Entry{PC: 0x8000}, Entry{PC: 0x9000, Priority: 4}))

	assert.Equal(t, Context{CPSR: ModeUSR, PC: 0x8000, SP: f.k.StackTop(0)}, f.frame)
	assert.Equal(t, Slot(0), f.executing(t))

	p1, _ := f.k.Proc(1)
	assert.Equal(t, StatusCreated, p1.Status)
	assert.Equal(t, 4, p1.Priority)
	assert.Equal(t, uint32(0x9000), p1.Ctx.PC)
	assert.Equal(t, f.k.StackTop(1), p1.Ctx.SP)

	p0, _ := f.k.Proc(0)
	assert.Equal(t, 1, p0.Priority)
	assert.Equal(t, uint32(0x8000), p0.Ctx.PC, "no prior context is saved")

	for _, p := range f.k.Procs()[2:] {
		assert.Equal(t, StatusInvalid, p.Status)
	}
	assert.Equal(t, []string{"reset 20", "-1->0"}, f.trace.events)
}

func TestResetProgramsTimerAndGIC(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)

	assert.Equal(t, f.k.Config().TimerLoad, f.b.Timer.Load())
	assert.Equal(t,
		board.TimerCtrl32Bit|board.TimerCtrlPeriodic|board.TimerCtrlIntEn|board.TimerCtrlEnable,
		f.b.Timer.Ctrl())

	f.b.Timer.Advance(f.k.Config().TimerLoad)
	assert.True(t, f.b.GIC.Pending(), "timer source unmasked")
}

func TestResetClearsPreviousState(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)
	f.svc(SysFork)
	f.svc(SysShmOpen, 64)

	f.boot(t, 0xA000)
	p1, _ := f.k.Proc(1)
	assert.Equal(t, StatusInvalid, p1.Status)
	assert.Equal(t, Unoccupied, f.k.Regions()[0].State)
	assert.False(t, f.k.Halted())
}

func TestResetRejectsBadEntryLists(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxProcs = 1 })
	assert.ErrorIs(t, f.k.Reset(&f.frame), ErrNoEntry)
	assert.ErrorIs(t, f.k.Reset(&f.frame, Entry{PC: 1}, Entry{PC: 2}), ErrNoFreeSlot)
}
