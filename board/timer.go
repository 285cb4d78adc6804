package board

// SP804 Timer1Ctrl bits.
const (
	TimerCtrl32Bit    uint32 = 0x02
	TimerCtrlIntEn    uint32 = 0x20
	TimerCtrlPeriodic uint32 = 0x40
	TimerCtrlEnable   uint32 = 0x80
)

// Timer models one SP804 down-counter wired to a GIC source.
type Timer struct {
	gic    *GIC
	source uint32

	load  uint32
	value uint32
	ctrl  uint32
	ris   bool // raw interrupt status

	fired uint64
}

// NewTimer returns a stopped timer that raises source on gic.
func NewTimer(gic *GIC, source uint32) *Timer {
	return &Timer{gic: gic, source: source}
}

// Configure loads the period and starts the timer in 32-bit periodic mode with
// its interrupt enabled.
func (t *Timer) Configure(load uint32) {
	t.load = load
	t.value = load
	t.ctrl = TimerCtrl32Bit | TimerCtrlPeriodic | TimerCtrlIntEn | TimerCtrlEnable
}

// Ctrl returns Timer1Ctrl.
func (t *Timer) Ctrl() uint32 { return t.ctrl }

// Load returns Timer1Load.
func (t *Timer) Load() uint32 { return t.load }

// Stop clears the enable bit.
func (t *Timer) Stop() { t.ctrl &^= TimerCtrlEnable }

// ClearInterrupt writes Timer1IntClr.
func (t *Timer) ClearInterrupt() {
	t.ris = false
	if t.gic != nil {
		t.gic.Lower(t.source)
	}
}

// InterruptPending reports the raw interrupt status.
func (t *Timer) InterruptPending() bool { return t.ris }

// Fired returns how many times the counter has wrapped.
func (t *Timer) Fired() uint64 { return t.fired }

// Advance counts down by cycles, raising the interrupt on each wrap.
func (t *Timer) Advance(cycles uint32) {
	if t.ctrl&TimerCtrlEnable == 0 || t.load == 0 {
		return
	}
	for cycles > 0 {
		if cycles < t.value {
			t.value -= cycles
			return
		}
		cycles -= t.value
		t.value = t.load
		t.fired++
		t.ris = true
		if t.ctrl&TimerCtrlIntEn != 0 && t.gic != nil {
			t.gic.Raise(t.source)
		}
		if t.ctrl&TimerCtrlPeriodic == 0 {
			t.ctrl &^= TimerCtrlEnable
			return
		}
	}
}
