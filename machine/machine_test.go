package machine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapos/board"
	"trapos/kernel"
)

// script is a program whose instruction i is script[i].
type script []func(cpu *CPU)

func (s script) Len() uint32 { return uint32(len(s)) }

func (s script) Step(cpu *CPU) { s[cpu.Label()](cpu) }

func spin() script {
	return script{func(cpu *CPU) { cpu.Jump(0) }}
}

func exit() func(*CPU) {
	return func(cpu *CPU) { cpu.SVC(kernel.SysExit) }
}

func write(s string) func(*CPU) {
	return func(cpu *CPU) {
		cpu.SVC(kernel.SysWrite, 1, cpu.Stage([]byte(s)), uint32(len(s)))
	}
}

type rig struct {
	m   *Machine
	b   *board.Board
	out *bytes.Buffer
}

func newRig(t *testing.T, progs map[string]Program) *rig {
	t.Helper()
	out := &bytes.Buffer{}
	b := board.New(board.DefaultConfig(), out)
	k, err := kernel.New(kernel.DefaultConfig(),
		kernel.WithMemory(b.RAM),
		kernel.WithConsole(b.UART),
		kernel.WithInterruptController(b.GIC),
		kernel.WithTimer(b.Timer),
	)
	require.NoError(t, err)

	img := NewImage(DefaultConfig().ImageBase)
	for _, name := range []string{"a", "b", "c"} {
		if p, ok := progs[name]; ok {
			_, err := img.Load(name, p)
			require.NoError(t, err)
		}
	}
	return &rig{m: New(DefaultConfig(), b, k, img), b: b, out: out}
}

func TestWriteThenExitHalts(t *testing.T) {
	r := newRig(t, map[string]Program{"a": script{write("hi\n"), exit()}})
	require.NoError(t, r.m.BootNamed("a"))

	err := r.m.Run(context.Background(), 10)
	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, "hi\n", r.out.String())
	assert.True(t, r.m.Kernel().Halted())

	steps, svcs, irqs := r.m.Stats()
	assert.Equal(t, uint64(2), steps)
	assert.Equal(t, uint64(2), svcs)
	assert.Zero(t, irqs)
}

func TestTimerPreemptsSpinningProcess(t *testing.T) {
	r := newRig(t, map[string]Program{"a": spin(), "b": spin()})
	require.NoError(t, r.m.BootNamed("a", "b"))

	perTick := int(kernel.DefaultConfig().TimerLoad / DefaultConfig().CyclesPerStep)
	require.NoError(t, r.m.Run(context.Background(), perTick))
	slot, _ := r.m.Kernel().Current()
	assert.Equal(t, kernel.Slot(0), slot)
	assert.True(t, r.b.GIC.Pending())

	require.NoError(t, r.m.Step())
	slot, _ = r.m.Kernel().Current()
	assert.Equal(t, kernel.Slot(1), slot)
	b, _ := r.m.Image().Entry("b")
	assert.Equal(t, b, r.m.Frame().PC)
	assert.False(t, r.b.GIC.Pending())

	_, _, irqs := r.m.Stats()
	assert.Equal(t, uint64(1), irqs)
}

func TestForkedChildResumesAfterCall(t *testing.T) {
	prog := script{
		func(cpu *CPU) { cpu.SVC(kernel.SysFork) },
		func(cpu *CPU) {
			if cpu.Reg(0) == 0 {
				write("c")(cpu)
				return
			}
			write("p")(cpu)
		},
		exit(),
	}
	r := newRig(t, map[string]Program{"a": prog})
	require.NoError(t, r.m.BootNamed("a"))

	require.ErrorIs(t, r.m.Run(context.Background(), 20), ErrHalted)
	assert.Equal(t, "pc", r.out.String())
}

func TestExecReplacesProgram(t *testing.T) {
	r := newRig(t, map[string]Program{
		"a": script{func(cpu *CPU) {
			pc, _ := cpu.Entry("b")
			cpu.SVC(kernel.SysExec, pc)
		}},
		"b": script{write("b"), exit()},
	})
	require.NoError(t, r.m.BootNamed("a"))

	require.ErrorIs(t, r.m.Run(context.Background(), 10), ErrHalted)
	assert.Equal(t, "b", r.out.String())
}

func TestStackRoundTrip(t *testing.T) {
	var got []uint32
	r := newRig(t, map[string]Program{"a": script{
		func(cpu *CPU) { cpu.Push(7); cpu.Push(9) },
		func(cpu *CPU) { cpu.Poke(1, 8); got = append(got, cpu.Peek(0)) },
		func(cpu *CPU) { got = append(got, cpu.Pop(), cpu.Pop()) },
		exit(),
	}})
	require.NoError(t, r.m.BootNamed("a"))
	top := r.m.Frame().SP

	require.NoError(t, r.m.Run(context.Background(), 3))
	assert.Equal(t, []uint32{9, 9, 8}, got)
	assert.Equal(t, top, r.m.Frame().SP)
}

func TestBadAccessAborts(t *testing.T) {
	r := newRig(t, map[string]Program{"a": script{func(cpu *CPU) { cpu.Load32(0) }}})
	require.NoError(t, r.m.BootNamed("a"))

	err := r.m.Step()
	require.ErrorIs(t, err, ErrAbort)
	require.ErrorIs(t, err, board.ErrFault)
}

func TestRunningOffTheImageAborts(t *testing.T) {
	r := newRig(t, map[string]Program{"a": script{func(cpu *CPU) { cpu.Jump(5) }}})
	require.NoError(t, r.m.BootNamed("a"))

	require.NoError(t, r.m.Step())
	require.ErrorIs(t, r.m.Step(), ErrAbort)
}

func TestPanicStopsMachineOnce(t *testing.T) {
	r := newRig(t, map[string]Program{"a": script{func(cpu *CPU) { panic("boom") }}})
	require.NoError(t, r.m.BootNamed("a"))

	var calls []PanicInfo
	r.m.SetPanicHandler(func(info PanicInfo) { calls = append(calls, info) })

	require.ErrorIs(t, r.m.Step(), ErrPanic)
	require.ErrorIs(t, r.m.Step(), ErrPanic)
	assert.True(t, r.m.InPanicMode())
	require.Len(t, calls, 1)
	assert.Equal(t, kernel.PID(0), calls[0].PID)
	assert.Equal(t, "boom", calls[0].Value)
	assert.NotEmpty(t, calls[0].Stack)
}

func TestBootErrors(t *testing.T) {
	r := newRig(t, map[string]Program{"a": spin()})
	assert.Error(t, r.m.Step(), "not booted")
	assert.Error(t, r.m.BootNamed("missing"))
	assert.ErrorIs(t, r.m.Boot(), kernel.ErrNoEntry)
}

func TestRunHonoursContext(t *testing.T) {
	r := newRig(t, map[string]Program{"a": spin()})
	require.NoError(t, r.m.BootNamed("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.m.Run(ctx, 10), context.Canceled)
}

func TestImageLayout(t *testing.T) {
	img := NewImage(0x8000)
	a, err := img.Load("a", spin())
	require.NoError(t, err)
	b, err := img.Load("b", script{exit(), exit()})
	require.NoError(t, err)

	assert.Equal(t, uint32(0x8000), a)
	assert.Equal(t, uint32(0xA000), b)
	assert.Equal(t, "b", img.Name(b+4))
	assert.Empty(t, img.Name(b+8))
	assert.Empty(t, img.Name(0x9000))
	assert.Equal(t, []string{"a", "b"}, img.Names())

	_, err = img.Load("a", spin())
	assert.Error(t, err)
	_, err = img.Load("e", script{})
	assert.Error(t, err)
}
