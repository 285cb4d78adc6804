package machine

import (
	"fmt"
	"sort"
)

// InstrBytes is the width of one program step.
const InstrBytes = 4

// Program is user code placed in the text image.
//
// A program keeps all of its state in registers, the program counter and its
// stack, so a forked copy resumes exactly where the parent was.
type Program interface {
	// Len is the number of instructions (labels) in the program.
	Len() uint32
	// Step executes the instruction at cpu.Label().
	Step(cpu *CPU)
}

type segment struct {
	name  string
	entry uint32
	size  uint32
	prog  Program
}

// Image is the read-only text region holding every loadable program.
type Image struct {
	base uint32
	next uint32
	segs []segment
}

// NewImage returns an empty image starting at base.
func NewImage(base uint32) *Image {
	return &Image{base: base, next: base}
}

// Load places p after the previously loaded programs and returns its entry.
func (im *Image) Load(name string, p Program) (uint32, error) {
	if _, ok := im.Entry(name); ok {
		return 0, fmt.Errorf("image: program %q already loaded", name)
	}
	size := p.Len() * InstrBytes
	if size == 0 {
		return 0, fmt.Errorf("image: program %q is empty", name)
	}
	entry := im.next
	im.segs = append(im.segs, segment{name: name, entry: entry, size: size, prog: p})
	// one unmapped page separates consecutive programs
	im.next = alignUp(entry+size, 0x1000) + 0x1000
	return entry, nil
}

// Entry returns the entry address of a loaded program.
func (im *Image) Entry(name string) (uint32, bool) {
	for _, s := range im.segs {
		if s.name == name {
			return s.entry, true
		}
	}
	return 0, false
}

// Name returns the program containing pc.
func (im *Image) Name(pc uint32) string {
	if s, ok := im.find(pc); ok {
		return s.name
	}
	return ""
}

// Names returns the loaded program names in load order.
func (im *Image) Names() []string {
	out := make([]string, len(im.segs))
	for i, s := range im.segs {
		out[i] = s.name
	}
	return out
}

func (im *Image) find(pc uint32) (*segment, bool) {
	i := sort.Search(len(im.segs), func(i int) bool {
		return im.segs[i].entry+im.segs[i].size > pc
	})
	if i == len(im.segs) || pc < im.segs[i].entry {
		return nil, false
	}
	return &im.segs[i], true
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}
