package kernel

import "fmt"

// Entry describes an initial process installed by Reset.
type Entry struct {
	PC       uint32
	Priority int // zero selects Config.DefaultPriority
}

// Reset brings the kernel up from power-on: it programs the timer and the
// interrupt controller, clears both tables, installs the initial processes in
// slot order and dispatches into slot 0 without saving the incoming frame.
func (k *Kernel) Reset(frame *Context, entries ...Entry) error {
	if len(entries) == 0 {
		return ErrNoEntry
	}
	if len(entries) > len(k.procs) {
		return fmt.Errorf("%w: %d initial processes for %d slots", ErrNoFreeSlot, len(entries), len(k.procs))
	}

	k.trace.Reset(len(k.procs))

	if k.timer != nil {
		k.timer.Configure(k.cfg.TimerLoad)
	}
	if k.gic != nil {
		k.gic.SetPriorityMask(0xF0)
		k.gic.EnableSource(k.cfg.TimerSource)
		k.gic.Enable()
	}

	k.invalidateAll()

	for i, e := range entries {
		p := &k.procs[i]
		p.Status = StatusCreated
		p.Ctx = Context{CPSR: ModeUSR, PC: e.PC, SP: p.StackTop}
		p.Priority = e.Priority
		if p.Priority == 0 {
			p.Priority = k.cfg.DefaultPriority
		}
	}

	k.Dispatch(frame, NoSlot, 0)
	k.procs[0].Status = StatusExecuting
	return nil
}
