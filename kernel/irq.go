package kernel

// IRQ services one interrupt. A timer tick reschedules; every source is
// acknowledged and signalled complete exactly once.
func (k *Kernel) IRQ(frame *Context) {
	if k.gic == nil {
		return
	}
	id := k.gic.Acknowledge()
	k.trace.Interrupt(id)

	if id == k.cfg.TimerSource {
		k.Schedule(frame)
		if k.timer != nil {
			k.timer.ClearInterrupt()
		}
	}

	k.gic.EndOfInterrupt(id)
}
