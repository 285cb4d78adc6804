package kernel

import "errors"

// Failure is the value written to r0 when a syscall fails (-1).
const Failure = ^uint32(0)

var (
	ErrNoFreeSlot   = errors.New("process table exhausted")
	ErrNoFreeRegion = errors.New("region table exhausted")
	ErrArenaFull    = errors.New("shared memory arena exhausted")
	ErrBadRegion    = errors.New("invalid region descriptor")
	ErrFault        = errors.New("memory fault")
	ErrNoEntry      = errors.New("no initial process")
	ErrConfig       = errors.New("invalid kernel config")
)
