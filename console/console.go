// Package console draws the bytes the machine's UART transmits onto a
// rectangle of the host framebuffer.
package console

import (
	"image"
	"image/color"
	"sync"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"trapos/hal"
)

const (
	fontHeight = 10
	fontOffset = 6
)

var background = color.RGBA{A: 0xFF}

// Console is a terminal on part of a framebuffer. It is an io.Writer so it
// can be attached to the UART as an output sink.
type Console struct {
	mu    sync.Mutex
	fb    hal.Framebuffer
	vp    *viewport
	t     *tinyterm.Terminal
	dirty bool
}

// New returns a cleared console occupying r of fb.
func New(fb hal.Framebuffer, r image.Rectangle) *Console {
	c := &Console{fb: fb, vp: newViewport(fb, r)}
	c.Reset()
	return c
}

// Bounds returns the framebuffer rectangle the console draws in.
func (c *Console) Bounds() image.Rectangle { return c.vp.r }

// Reset clears the console and homes the cursor.
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = tinyterm.NewTerminal(c.vp)
	c.t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        fontHeight,
		FontOffset:        fontOffset,
		UseSoftwareScroll: true,
	})
	_ = c.vp.FillRectangle(0, 0, int16(c.vp.r.Dx()), int16(c.vp.r.Dy()), background)
	c.dirty = true
}

// Write renders p. Backspace moves the cursor left.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range p {
		switch b {
		case '\b':
			_, _ = c.t.Write([]byte("\x1b[D"))
		case '\r':
		default:
			_ = c.t.WriteByte(b)
		}
	}
	c.dirty = len(p) > 0 || c.dirty
	return len(p), nil
}

// Flush presents the framebuffer if anything was drawn since the last flush.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	c.dirty = false
	return c.fb.Present()
}
