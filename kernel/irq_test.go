package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerInterruptReschedules(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)
	cfg := f.k.Config()

	f.b.Timer.Advance(cfg.TimerLoad)
	require.True(t, f.b.GIC.Pending())

	f.k.IRQ(&f.frame)

	assert.Equal(t, Slot(1), f.executing(t))
	assert.False(t, f.b.Timer.InterruptPending(), "timer interrupt cleared")
	assert.False(t, f.b.GIC.Pending())
	assert.Equal(t, 1, f.b.GIC.EOICount())
	assert.Equal(t, cfg.TimerSource, f.b.GIC.LastEOI())
	assert.Contains(t, f.trace.events, "irq 36")
}

func TestOtherInterruptPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000)
	f.b.GIC.EnableSource(44)
	f.b.GIC.Raise(44)
	before := f.k.Procs()

	f.k.IRQ(&f.frame)

	assert.Equal(t, before, f.k.Procs())
	assert.Equal(t, 1, f.b.GIC.EOICount())
	assert.Equal(t, uint32(44), f.b.GIC.LastEOI())
}

func TestSpuriousInterruptStillSignalsEnd(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000)

	f.k.IRQ(&f.frame)
	assert.Equal(t, 1, f.b.GIC.EOICount())
}

func TestPreemptionRoundRobinsEqualPriorities(t *testing.T) {
	f := newFixture(t)
	f.boot(t, 0x8000, 0x9000, 0xA000)
	load := f.k.Config().TimerLoad

	var order []Slot
	for i := 0; i < 6; i++ {
		f.b.Timer.Advance(load)
		f.k.IRQ(&f.frame)
		order = append(order, f.executing(t))
	}
	assert.Equal(t, []Slot{2, 1, 0, 2, 1, 0}, order)
}
