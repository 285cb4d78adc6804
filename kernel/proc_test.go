package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackTopStride(t *testing.T) {
	f := newFixture(t)
	cfg := f.k.Config()
	for i := 0; i < cfg.MaxProcs; i++ {
		want := cfg.StackTop - uint32(i)*cfg.SlotSize
		assert.Equal(t, want, f.k.StackTop(Slot(i)))
		p, ok := f.k.Proc(Slot(i))
		require.True(t, ok)
		assert.Equal(t, want, p.StackTop)
		assert.Equal(t, PID(i), p.PID)
		assert.Equal(t, StatusInvalid, p.Status)
	}
}

func TestAllocateFirstFree(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxProcs = 3 })
	f.boot(t, 0x8000)

	slot, ok := f.k.allocate()
	require.True(t, ok)
	assert.Equal(t, Slot(1), slot)

	f.k.procs[1].Status = StatusReady
	f.k.procs[2].Status = StatusReady
	_, ok = f.k.allocate()
	assert.False(t, ok, "table exhausted")

	f.k.terminate(1)
	slot, ok = f.k.allocate()
	require.True(t, ok)
	assert.Equal(t, Slot(1), slot, "terminated slot is reusable")
}

func TestLookupSkipsFreeRecords(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)

	slot, ok := f.k.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, Slot(1), slot)

	f.k.terminate(1)
	_, ok = f.k.Lookup(1)
	assert.False(t, ok)

	_, ok = f.k.Lookup(7)
	assert.False(t, ok)
}

func TestTerminateResetsAccounting(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)
	f.k.procs[1].Priority = 9
	f.k.procs[1].Age = 4
	f.k.procs[1].Ctx.PC = 0x1234

	f.k.terminate(1)
	p, _ := f.k.Proc(1)
	assert.Equal(t, StatusTerminated, p.Status)
	assert.Zero(t, p.Priority)
	assert.Zero(t, p.Age)
	assert.Equal(t, Context{}, p.Ctx)
	assert.Equal(t, PID(1), p.PID)
	assert.Equal(t, f.k.StackTop(1), p.StackTop)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "executing", StatusExecuting.String())
	assert.Equal(t, "unknown", Status(42).String())
}
