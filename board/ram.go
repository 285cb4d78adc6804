package board

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFault is returned for accesses outside RAM.
var ErrFault = errors.New("bus fault")

// RAM is byte-addressed physical memory starting at Base.
type RAM struct {
	base uint32
	buf  []byte
}

// NewRAM allocates size bytes of zeroed memory mapped at base.
func NewRAM(base, size uint32) *RAM {
	return &RAM{base: base, buf: make([]byte, size)}
}

// Base returns the lowest mapped address.
func (m *RAM) Base() uint32 { return m.base }

// Size returns the mapped length in bytes.
func (m *RAM) Size() uint32 { return uint32(len(m.buf)) }

func (m *RAM) span(addr, n uint32) ([]byte, error) {
	if addr < m.base {
		return nil, fmt.Errorf("%w: 0x%08x below 0x%08x", ErrFault, addr, m.base)
	}
	off := uint64(addr - m.base)
	if off+uint64(n) > uint64(len(m.buf)) {
		return nil, fmt.Errorf("%w: 0x%08x+%#x beyond 0x%08x", ErrFault, addr, n, uint64(m.base)+uint64(len(m.buf)))
	}
	return m.buf[off : off+uint64(n)], nil
}

// Read copies len(p) bytes at addr into p.
func (m *RAM) Read(addr uint32, p []byte) error {
	s, err := m.span(addr, uint32(len(p)))
	if err != nil {
		return err
	}
	copy(p, s)
	return nil
}

// Write copies p to addr.
func (m *RAM) Write(addr uint32, p []byte) error {
	s, err := m.span(addr, uint32(len(p)))
	if err != nil {
		return err
	}
	copy(s, p)
	return nil
}

// Copy moves n bytes from src to dst. Overlapping spans are handled.
func (m *RAM) Copy(dst, src, n uint32) error {
	d, err := m.span(dst, n)
	if err != nil {
		return err
	}
	s, err := m.span(src, n)
	if err != nil {
		return err
	}
	copy(d, s)
	return nil
}

// Zero clears n bytes at addr.
func (m *RAM) Zero(addr, n uint32) error {
	s, err := m.span(addr, n)
	if err != nil {
		return err
	}
	clear(s)
	return nil
}

// Load32 reads a little-endian word.
func (m *RAM) Load32(addr uint32) (uint32, error) {
	s, err := m.span(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

// Store32 writes a little-endian word.
func (m *RAM) Store32(addr, v uint32) error {
	s, err := m.span(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s, v)
	return nil
}
