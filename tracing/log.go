package tracing

import (
	"fmt"

	"trapos/hal"
	"trapos/kernel"
)

var (
	_ kernel.Tracer = (*Log)(nil)
	_ kernel.Tracer = (*OTel)(nil)
	_ kernel.Tracer = Multi(nil)
)

// Log writes the classic bracketed trace: [R] on reset, [a->b] on every
// dispatch, [T] on the timer, and [F], [EXIT], [EXEC] on process lifecycle
// calls.
type Log struct {
	l     hal.Logger
	timer uint32
}

// NewLog returns a log tracer. timer is the interrupt id printed as [T].
func NewLog(l hal.Logger, timer uint32) *Log {
	return &Log{l: l, timer: timer}
}

func pid(p kernel.PID) string {
	if p == kernel.NoPID {
		return "-"
	}
	return fmt.Sprint(int32(p))
}

func (t *Log) Reset(int) { t.l.WriteLineString("[R]") }

func (t *Log) Dispatch(prev, next kernel.PID) {
	t.l.WriteLineString("[" + pid(prev) + "->" + pid(next) + "]")
}

func (t *Log) Syscall(_ kernel.PID, id uint32) {
	switch id {
	case kernel.SysFork:
		t.l.WriteLineString("[F]")
	case kernel.SysExit:
		t.l.WriteLineString("[EXIT]")
	case kernel.SysExec:
		t.l.WriteLineString("[EXEC]")
	}
}

func (t *Log) Interrupt(id uint32) {
	if id == t.timer {
		t.l.WriteLineString("[T]")
		return
	}
	t.l.WriteLineString(fmt.Sprintf("[IRQ %d]", id))
}

func (t *Log) Halt() { t.l.WriteLineString("[HALT]") }

// Multi fans events out to every tracer in order.
type Multi []kernel.Tracer

func (m Multi) Reset(procs int) {
	for _, t := range m {
		t.Reset(procs)
	}
}

func (m Multi) Dispatch(prev, next kernel.PID) {
	for _, t := range m {
		t.Dispatch(prev, next)
	}
}

func (m Multi) Syscall(p kernel.PID, id uint32) {
	for _, t := range m {
		t.Syscall(p, id)
	}
}

func (m Multi) Interrupt(id uint32) {
	for _, t := range m {
		t.Interrupt(id)
	}
}

func (m Multi) Halt() {
	for _, t := range m {
		t.Halt()
	}
}
