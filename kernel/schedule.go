package kernel

// eligible reports whether the scheduler considers record p.
func eligible(p *PCB) bool {
	return !p.Status.free()
}

// pick returns the eligible slot with the highest score. On equal scores the
// later slot wins.
func (k *Kernel) pick() (Slot, bool) {
	next := NoSlot
	best := 0
	for i := range k.procs {
		p := &k.procs[i]
		if !eligible(p) {
			continue
		}
		if next == NoSlot || best <= p.Score() {
			next = Slot(i)
			best = p.Score()
		}
	}
	return next, next != NoSlot
}

// Schedule selects the next process by priority plus age, ages every other
// eligible process and dispatches into the winner. If nothing is eligible the
// kernel halts and the frame is left untouched.
func (k *Kernel) Schedule(frame *Context) {
	next, ok := k.pick()
	if !ok {
		k.halt()
		return
	}

	for i := range k.procs {
		p := &k.procs[i]
		if !eligible(p) {
			continue
		}
		if Slot(i) == next {
			p.Age = 0
		} else {
			p.Age++
		}
	}

	prev := k.current
	k.Dispatch(frame, prev, next)

	if k.validSlot(prev) && k.procs[prev].Status != StatusTerminated {
		k.procs[prev].Status = StatusReady
	}
	k.procs[next].Status = StatusExecuting
}

func (k *Kernel) halt() {
	k.current = NoSlot
	k.halted = true
	k.trace.Halt()
}
