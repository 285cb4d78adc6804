package machine

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"trapos/kernel"
)

// PanicInfo contains details about a panic recovered while stepping a process.
type PanicInfo struct {
	PID   kernel.PID
	PC    uint32
	Value any
	Stack []byte
}

type panicState struct {
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(PanicInfo)
}

// InPanicMode reports whether the machine stopped on a panic.
func (m *Machine) InPanicMode() bool {
	return m.panic.active.Load()
}

// SetPanicHandler installs the panic handler.
//
// The handler is invoked at most once (on the first panic). It must not panic.
func (m *Machine) SetPanicHandler(fn func(PanicInfo)) {
	m.panic.handler.Store(fn)
}

func (m *Machine) triggerPanic(info PanicInfo) {
	m.panic.once.Do(func() {
		m.panic.active.Store(true)
		info.Stack = debug.Stack()
		if v := m.panic.handler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
