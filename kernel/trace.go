package kernel

// Tracer receives one call per significant kernel event.
//
// Calls happen inside trap handlers and must not call back into the kernel.
type Tracer interface {
	Reset(procs int)
	Dispatch(prev, next PID)
	Syscall(pid PID, id uint32)
	Interrupt(id uint32)
	Halt()
}

type nopTracer struct{}

func (nopTracer) Reset(int)           {}
func (nopTracer) Dispatch(PID, PID)   {}
func (nopTracer) Syscall(PID, uint32) {}
func (nopTracer) Interrupt(uint32)    {}
func (nopTracer) Halt()               {}
