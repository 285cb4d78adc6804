package kernel

// PID identifies a process. NoPID marks an absent process in trace events.
type PID int32

const NoPID PID = -1

// Slot is the stable index of a record in the process table.
type Slot int

const NoSlot Slot = -1

// Status is the lifecycle state of a process record.
type Status uint8

const (
	StatusInvalid Status = iota
	StatusCreated
	StatusTerminated
	StatusReady
	StatusExecuting
	StatusWaiting
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusCreated:
		return "created"
	case StatusTerminated:
		return "terminated"
	case StatusReady:
		return "ready"
	case StatusExecuting:
		return "executing"
	case StatusWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// free reports whether a record may be claimed by fork.
func (s Status) free() bool {
	return s == StatusInvalid || s == StatusTerminated
}

// PCB is a process control block.
type PCB struct {
	PID      PID
	Status   Status
	StackTop uint32
	Ctx      Context
	Priority int
	Age      int
}

// Score is the value the scheduler maximises.
func (p *PCB) Score() int { return p.Priority + p.Age }

// StackTop returns the highest address of slot i's stack.
func (k *Kernel) StackTop(i Slot) uint32 {
	return k.cfg.StackTop - uint32(i)*k.cfg.SlotSize
}

// stackBase returns the lowest address of slot i's stack.
func (k *Kernel) stackBase(i Slot) uint32 {
	return k.StackTop(i) - k.cfg.SlotSize
}

func (k *Kernel) validSlot(i Slot) bool {
	return i >= 0 && int(i) < len(k.procs)
}

// invalidateAll puts every process and region record in its free state.
func (k *Kernel) invalidateAll() {
	for i := range k.procs {
		k.release(Slot(i))
	}
	for i := range k.regions {
		k.regions[i] = Region{FD: i}
	}
	k.current = NoSlot
	k.halted = false
}

// allocate returns the first slot that is Invalid or Terminated. The
// executing slot is never handed out, even after it killed itself: it still
// owns the trap frame until it is dispatched away.
func (k *Kernel) allocate() (Slot, bool) {
	for i := range k.procs {
		if Slot(i) != k.current && k.procs[i].Status.free() {
			return Slot(i), true
		}
	}
	return NoSlot, false
}

// Lookup returns the slot of the live process with the given pid.
func (k *Kernel) Lookup(pid PID) (Slot, bool) {
	for i := range k.procs {
		p := &k.procs[i]
		if p.Status.free() {
			continue
		}
		if p.PID == pid {
			return Slot(i), true
		}
	}
	return NoSlot, false
}

// release zeroes a record and returns it to the Invalid state. The pid and
// stack top belong to the slot and survive.
func (k *Kernel) release(i Slot) {
	k.procs[i] = PCB{
		PID:      PID(i),
		Status:   StatusInvalid,
		StackTop: k.StackTop(i),
	}
}

// terminate hard-resets a record and marks it Terminated.
func (k *Kernel) terminate(i Slot) {
	k.release(i)
	k.procs[i].Status = StatusTerminated
}

// ProcInfo is a read-only view of a process record.
type ProcInfo struct {
	Slot      Slot
	PID       PID
	Status    Status
	StackTop  uint32
	Priority  int
	Age       int
	PC        uint32
	SP        uint32
	Executing bool
}

// Procs returns a snapshot of the process table.
func (k *Kernel) Procs() []ProcInfo {
	out := make([]ProcInfo, len(k.procs))
	for i := range k.procs {
		p := &k.procs[i]
		out[i] = ProcInfo{
			Slot:      Slot(i),
			PID:       p.PID,
			Status:    p.Status,
			StackTop:  p.StackTop,
			Priority:  p.Priority,
			Age:       p.Age,
			PC:        p.Ctx.PC,
			SP:        p.Ctx.SP,
			Executing: Slot(i) == k.current,
		}
	}
	return out
}

// Proc returns a copy of the record in slot i.
func (k *Kernel) Proc(i Slot) (PCB, bool) {
	if !k.validSlot(i) {
		return PCB{}, false
	}
	return k.procs[i], true
}
