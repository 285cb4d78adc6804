package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapos/board"
)

func TestWriteCopiesBufferToConsole(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)

	buf := f.k.StackTop(0) - 0x40
	require.NoError(t, f.b.RAM.Write(buf, []byte("hello, world\n")))

	n := f.svc(SysWrite, 1, buf, 13)
	assert.Equal(t, uint32(13), n)
	assert.Equal(t, "hello, world\n", f.out.String())
}

func TestWriteLongBuffer(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)

	msg := make([]byte, 3*ioChunk+5)
	for i := range msg {
		msg[i] = 'a' + byte(i%26)
	}
	buf := f.k.StackTop(0) - 0x400
	require.NoError(t, f.b.RAM.Write(buf, msg))

	assert.Equal(t, uint32(len(msg)), f.svc(SysWrite, 1, buf, uint32(len(msg))))
	assert.Equal(t, string(msg), f.out.String())
}

func TestWriteFaultReturnsFailure(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)
	assert.Equal(t, Failure, f.svc(SysWrite, 1, 0x10, 4))
	assert.Empty(t, f.out.String())
}

func TestWriteFaultMidwayReportsBytesWritten(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)

	rc := board.DefaultConfig()
	end := rc.RAMBase + rc.RAMSize
	msg := make([]byte, ioChunk+6)
	for i := range msg {
		msg[i] = 'a' + byte(i%26)
	}
	buf := end - uint32(len(msg))
	require.NoError(t, f.b.RAM.Write(buf, msg))

	assert.Equal(t, uint32(ioChunk), f.svc(SysWrite, 1, buf, uint32(len(msg))+30))
	assert.Equal(t, string(msg[:ioChunk]), f.out.String())
}

func TestReadDrainsPendingInput(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)
	buf := f.k.StackTop(0) - 0x40

	assert.Zero(t, f.svc(SysRead, 0, buf, 8), "nothing pending")

	f.b.UART.Receive([]byte("abc"))
	assert.Equal(t, uint32(2), f.svc(SysRead, 0, buf, 2))
	assert.Equal(t, uint32(1), f.svc(SysRead, 0, buf+2, 8))

	got := make([]byte, 3)
	require.NoError(t, f.b.RAM.Read(buf, got))
	assert.Equal(t, "abc", string(got))
}

func TestForkDuplicatesCaller(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)

	top := f.k.StackTop(0)
	f.frame.SP = top - 0x20
	f.frame.PC = 0x8040
	f.frame.GPR[4] = 0x44
	require.NoError(t, f.b.RAM.Store32(top-0x10, 0xCAFEF00D))

	pid := f.svc(SysFork)
	require.Equal(t, uint32(1), pid)

	child, ok := f.k.Proc(1)
	require.True(t, ok)
	assert.Equal(t, StatusCreated, child.Status)
	assert.Equal(t, 1, child.Priority)
	assert.Zero(t, child.Age)
	assert.Zero(t, child.Ctx.GPR[0], "child sees 0")
	assert.Equal(t, uint32(0x44), child.Ctx.GPR[4])
	assert.Equal(t, uint32(0x8040), child.Ctx.PC)
	assert.Equal(t, top-f.frame.SP, child.StackTop-child.Ctx.SP, "same depth below top of stack")

	v, err := f.b.RAM.Load32(child.StackTop - 0x10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEF00D), v)

	parent, _ := f.k.Proc(0)
	assert.NotEqual(t, parent.PID, child.PID)
	assert.Equal(t, Slot(0), f.executing(t), "fork does not reschedule")
}

func TestForkChildResumesWithZero(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)
	f.frame.PC = 0x8040

	require.Equal(t, uint32(1), f.svc(SysFork))
	f.svc(SysYield)

	require.Equal(t, Slot(1), f.executing(t))
	assert.Zero(t, f.frame.GPR[0])
	assert.Equal(t, uint32(0x8040), f.frame.PC)
}

func TestForkExhaustedLeavesStateAlone(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxProcs = 2 })
	f.boot(t, 0x8000, 0x9000)
	before := f.k.Procs()

	assert.Equal(t, Failure, f.svc(SysFork))
	assert.Equal(t, before, f.k.Procs())
}

func TestExitReleasesSlotForReuse(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)
	f.svc(SysYield)
	require.Equal(t, Slot(1), f.executing(t))

	f.svc(SysExit, 0)
	require.Equal(t, Slot(0), f.executing(t))
	p1, _ := f.k.Proc(1)
	assert.Equal(t, StatusTerminated, p1.Status)

	for i := 0; i < 5; i++ {
		f.svc(SysYield)
		assert.Equal(t, Slot(0), f.executing(t))
	}

	assert.Equal(t, uint32(1), f.svc(SysFork), "slot 1 is reused")
}

func TestExecReplacesProgram(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)
	f.svc(SysYield)
	require.Equal(t, Slot(1), f.executing(t))
	f.frame.SP = f.k.StackTop(1) - 0x80
	f.frame.GPR[6] = 6
	f.k.procs[1].Priority = 3

	f.svc(SysExec, 0xB000)
	assert.Equal(t, uint32(0xB000), f.frame.PC)
	assert.Equal(t, f.k.StackTop(1), f.frame.SP)
	assert.Equal(t, uint32(6), f.frame.GPR[6])

	p1, _ := f.k.Proc(1)
	assert.Equal(t, PID(1), p1.PID)
	assert.Equal(t, 3, p1.Priority)
	assert.Equal(t, Slot(1), f.executing(t))
}

func TestKillIsDeferred(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000, 0xA000)
	f.frame.GPR[0] = 0x77

	f.svc(SysKill, 2, 0)
	p2, _ := f.k.Proc(2)
	assert.Equal(t, StatusTerminated, p2.Status)
	assert.Equal(t, Slot(0), f.executing(t), "no forced reschedule")
	assert.Equal(t, uint32(2), f.frame.GPR[0], "r0 untouched")

	f.svc(SysYield)
	assert.Equal(t, Slot(1), f.executing(t))
}

func TestKillUnknownPIDIsNoop(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)
	before := f.k.Procs()
	f.svc(SysKill, 9, 0)
	assert.Equal(t, before, f.k.Procs())
}

func TestKillSelfTakesEffectAtNextSchedulingPoint(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)

	f.svc(SysKill, 0, 0)
	cur, ok := f.k.Current()
	require.True(t, ok)
	assert.Equal(t, Slot(0), cur, "victim keeps the processor")

	f.svc(SysYield)
	assert.Equal(t, Slot(1), f.executing(t))
	p0, _ := f.k.Proc(0)
	assert.Equal(t, StatusTerminated, p0.Status)
}

func TestForkAfterSelfKillUsesAnotherSlot(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)

	f.svc(SysKill, 0, 0)
	pid := f.svc(SysFork)
	require.Equal(t, uint32(2), pid, "child must not reuse the caller's slot")

	p0, _ := f.k.Proc(0)
	assert.Equal(t, StatusTerminated, p0.Status)
	child, ok := f.k.Proc(2)
	require.True(t, ok)
	assert.Equal(t, StatusCreated, child.Status)

	for i := 0; i < 4; i++ {
		f.svc(SysYield)
		assert.NotEqual(t, Slot(0), f.executing(t), "killed process never runs again")
	}
	p0, _ = f.k.Proc(0)
	assert.Equal(t, StatusTerminated, p0.Status)
}

func TestNiceIsDeferred(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)

	f.svc(SysNice, 1, 50)
	p1, _ := f.k.Proc(1)
	assert.Equal(t, 50, p1.Priority)
	assert.Equal(t, Slot(0), f.executing(t))

	f.svc(SysNice, 0, 100)
	f.svc(SysNice, 8, 100)
	f.svc(SysYield)
	assert.Equal(t, Slot(0), f.executing(t))

	f.svc(SysNice, 0, uint32(0xFFFFFFFF))
	p0, _ := f.k.Proc(0)
	assert.Equal(t, -1, p0.Priority)
	f.svc(SysYield)
	assert.Equal(t, Slot(1), f.executing(t))
}

func TestUnknownSyscallIgnored(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)
	f.frame.GPR[0] = 0x1234
	before := f.k.Procs()

	f.k.SVC(&f.frame, 0x2A)
	assert.Equal(t, uint32(0x1234), f.frame.GPR[0])
	assert.Equal(t, before, f.k.Procs())
}

func TestSyscallTraced(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)
	f.svc(SysNice, 0, 2)
	assert.Contains(t, f.trace.events, "svc 0 nice")
}
