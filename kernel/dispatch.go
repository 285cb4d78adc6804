package kernel

// Dispatch swaps register state: the trap frame is saved into prev and the
// frame is loaded from next. Either side may be NoSlot. It makes no
// scheduling decision and is the only place frames are copied wholesale.
func (k *Kernel) Dispatch(frame *Context, prev, next Slot) {
	prevPID, nextPID := NoPID, NoPID

	if k.validSlot(prev) {
		k.procs[prev].Ctx = *frame
		prevPID = k.procs[prev].PID
	}
	if k.validSlot(next) {
		*frame = k.procs[next].Ctx
		nextPID = k.procs[next].PID
	} else {
		next = NoSlot
	}

	k.trace.Dispatch(prevPID, nextPID)
	k.current = next
}
