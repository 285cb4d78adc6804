package console

import (
	"image"
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyterm"

	"trapos/hal"
)

// viewport is a rectangle of an RGB565 framebuffer seen as a whole display.
type viewport struct {
	fb hal.Framebuffer
	r  image.Rectangle
}

var _ tinyterm.Displayer = (*viewport)(nil)

func newViewport(fb hal.Framebuffer, r image.Rectangle) *viewport {
	return &viewport{fb: fb, r: r.Intersect(image.Rect(0, 0, fb.Width(), fb.Height()))}
}

func (v *viewport) Size() (x, y int16) {
	return int16(v.r.Dx()), int16(v.r.Dy())
}

func (v *viewport) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || int(x) >= v.r.Dx() || int(y) >= v.r.Dy() {
		return
	}
	hal.SetPixel(v.fb, v.r.Min.X+int(x), v.r.Min.Y+int(y), c)
}

func (v *viewport) Display() error {
	return v.fb.Present()
}

// ScrollUp moves the viewport contents up by lines pixels and clears the
// exposed rows to bg.
func (v *viewport) ScrollUp(lines int16, bg color.RGBA) error {
	n := int(lines)
	h := v.r.Dy()
	if n <= 0 {
		return nil
	}
	if n >= h {
		return v.FillRectangle(0, 0, int16(v.r.Dx()), int16(h), bg)
	}

	buf := v.fb.Buffer()
	stride := v.fb.StrideBytes()
	x0 := v.r.Min.X * 2
	x1 := v.r.Max.X * 2
	for y := v.r.Min.Y; y < v.r.Max.Y-n; y++ {
		dst := y * stride
		src := (y + n) * stride
		copy(buf[dst+x0:dst+x1], buf[src+x0:src+x1])
	}
	return v.FillRectangle(0, int16(h-n), int16(v.r.Dx()), int16(n), bg)
}

func (v *viewport) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	fill := image.Rect(int(x), int(y), int(x)+int(width), int(y)+int(height)).
		Add(v.r.Min).
		Intersect(v.r)
	for py := fill.Min.Y; py < fill.Max.Y; py++ {
		for px := fill.Min.X; px < fill.Max.X; px++ {
			hal.SetPixel(v.fb, px, py, c)
		}
	}
	return nil
}

func (v *viewport) SetScroll(line int16) {}

func (v *viewport) SetRotation(rotation drivers.Rotation) error {
	return nil
}
