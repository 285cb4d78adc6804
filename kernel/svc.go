package kernel

// System call identifiers, taken from the svc immediate operand.
const (
	SysYield     uint32 = 0x00
	SysWrite     uint32 = 0x01
	SysRead      uint32 = 0x02
	SysFork      uint32 = 0x03
	SysExit      uint32 = 0x04
	SysExec      uint32 = 0x05
	SysKill      uint32 = 0x06
	SysNice      uint32 = 0x07
	SysShmOpen   uint32 = 0x08
	SysMmap      uint32 = 0x09
	SysShmUnlink uint32 = 0x0A
)

// SyscallName returns a short name for id, or "" if id is not a syscall.
func SyscallName(id uint32) string {
	switch id {
	case SysYield:
		return "yield"
	case SysWrite:
		return "write"
	case SysRead:
		return "read"
	case SysFork:
		return "fork"
	case SysExit:
		return "exit"
	case SysExec:
		return "exec"
	case SysKill:
		return "kill"
	case SysNice:
		return "nice"
	case SysShmOpen:
		return "shm_open"
	case SysMmap:
		return "mmap"
	case SysShmUnlink:
		return "shm_unlink"
	default:
		return ""
	}
}

// ioChunk bounds the buffer used to move bytes between memory and the console.
const ioChunk = 64

// SVC handles a supervisor call. Arguments are in r0..r2 and the result, if
// any, is written to r0. Unknown ids are ignored.
func (k *Kernel) SVC(frame *Context, id uint32) {
	p := k.executing()
	pid := NoPID
	if p != nil {
		pid = p.PID
	}
	k.trace.Syscall(pid, id)

	switch id {
	case SysYield:
		k.Schedule(frame)

	case SysWrite:
		k.sysWrite(frame)

	case SysRead:
		k.sysRead(frame)

	case SysFork:
		if p == nil {
			frame.SetError()
			return
		}
		k.sysFork(frame)

	case SysExit:
		if p != nil {
			k.terminate(k.current)
		}
		k.Schedule(frame)

	case SysExec:
		if p == nil {
			return
		}
		frame.PC = frame.Arg(0)
		frame.SP = p.StackTop

	case SysKill:
		if slot, ok := k.Lookup(PID(int32(frame.Arg(0)))); ok {
			k.terminate(slot)
		}

	case SysNice:
		if slot, ok := k.Lookup(PID(int32(frame.Arg(0)))); ok {
			k.procs[slot].Priority = int(int32(frame.Arg(1)))
		}

	case SysShmOpen:
		fd, err := k.shmOpen(frame.Arg(0))
		if err != nil {
			frame.SetError()
			return
		}
		frame.SetResult(uint32(fd))

	case SysMmap:
		addr, err := k.mmap(frame.Arg(0))
		if err != nil {
			frame.SetError()
			return
		}
		frame.SetResult(addr)

	case SysShmUnlink:
		if err := k.shmUnlink(frame.Arg(0)); err != nil {
			frame.SetError()
		}
	}
}

// sysWrite copies n bytes at buf to the console, one byte at a time. A fault
// after some bytes went out reports the count written so far.
func (k *Kernel) sysWrite(frame *Context) {
	buf, n := frame.Arg(1), frame.Arg(2)

	var chunk [ioChunk]byte
	done := uint32(0)
	for done < n {
		m := n - done
		if m > ioChunk {
			m = ioChunk
		}
		if err := k.mem.Read(buf+done, chunk[:m]); err != nil {
			if done == 0 {
				frame.SetError()
				return
			}
			break
		}
		if k.console != nil {
			for _, b := range chunk[:m] {
				k.console.PutByte(b)
			}
		}
		done += m
	}
	frame.SetResult(done)
}

// sysRead moves up to n pending console bytes to buf without blocking.
func (k *Kernel) sysRead(frame *Context) {
	buf, n := frame.Arg(1), frame.Arg(2)

	r, ok := k.console.(ConsoleReader)
	if !ok {
		frame.SetResult(0)
		return
	}

	var chunk [ioChunk]byte
	got := uint32(0)
	for got < n {
		m := 0
		for m < ioChunk && got+uint32(m) < n {
			b, ok := r.TryGetByte()
			if !ok {
				break
			}
			chunk[m] = b
			m++
		}
		if m == 0 {
			break
		}
		if err := k.mem.Write(buf+got, chunk[:m]); err != nil {
			frame.SetError()
			return
		}
		got += uint32(m)
	}
	frame.SetResult(got)
}

// sysFork duplicates the executing process into a free slot. The child's
// stack is copied byte for byte and its sp keeps the parent's depth below
// the top of stack.
func (k *Kernel) sysFork(frame *Context) {
	parent := k.current
	child, ok := k.allocate()
	if !ok {
		frame.SetError()
		return
	}

	if err := k.mem.Copy(k.stackBase(child), k.stackBase(parent), k.cfg.SlotSize); err != nil {
		frame.SetError()
		return
	}

	depth := k.procs[parent].StackTop - frame.SP

	k.release(child)
	c := &k.procs[child]
	c.Ctx = *frame
	c.Ctx.SP = c.StackTop - depth
	c.Ctx.GPR[0] = 0
	c.Priority = k.cfg.DefaultPriority
	c.Age = 0
	c.Status = StatusCreated

	frame.SetResult(uint32(c.PID))
}
