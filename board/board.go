// Package board simulates the platform devices the kernel drives: RAM, a
// generic interrupt controller, an SP804-style periodic timer and a PL011-style
// console UART.
package board

import "io"

// Config describes the memory map and interrupt wiring.
type Config struct {
	RAMBase     uint32 `json:"ramBase" yaml:"ramBase"`
	RAMSize     uint32 `json:"ramSize" yaml:"ramSize"`
	TimerSource uint32 `json:"timerSource" yaml:"timerSource"`
}

// DefaultConfig returns a 1 MiB RAM at 0x70000000 with the timer on GIC source 36.
func DefaultConfig() Config {
	return Config{
		RAMBase:     0x70000000,
		RAMSize:     0x00100000,
		TimerSource: 36,
	}
}

// Board groups the devices of one machine.
type Board struct {
	RAM   *RAM
	GIC   *GIC
	Timer *Timer
	UART  *UART
}

// New wires a board. Console output goes to sinks.
func New(cfg Config, sinks ...io.Writer) *Board {
	gic := NewGIC()
	return &Board{
		RAM:   NewRAM(cfg.RAMBase, cfg.RAMSize),
		GIC:   gic,
		Timer: NewTimer(gic, cfg.TimerSource),
		UART:  NewUART(sinks...),
	}
}
