// Package monitor draws a live view of the process and region tables next to
// the console.
package monitor

import (
	"fmt"
	"image"
	"image/color"

	gg "github.com/fogleman/gg"

	"trapos/hal"
	"trapos/kernel"
)

// Layout, in pixels.
const (
	headerHeight = 16
	rowHeight    = 14
	swatchX      = 2
	swatchSize   = 8
	barHeight    = 10
)

var (
	colBackground = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xFF}
	colText       = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	colScore      = color.RGBA{R: 0xFF, G: 0x80, A: 0xFF}
	colRegion     = color.RGBA{R: 0x80, G: 0x80, B: 0xFF, A: 0xFF}
	colStatus     = map[kernel.Status]color.RGBA{
		kernel.StatusExecuting:  {G: 0xFF, A: 0xFF},
		kernel.StatusReady:      {B: 0xFF, A: 0xFF},
		kernel.StatusCreated:    {R: 0xFF, G: 0xFF, A: 0xFF},
		kernel.StatusWaiting:    {R: 0xFF, G: 0x80, A: 0xFF},
		kernel.StatusTerminated: {R: 0x80, G: 0x80, B: 0x80, A: 0xFF},
	}
)

// Row is one process record and the program its pc lies in.
type Row struct {
	kernel.ProcInfo
	Program string
}

// Snapshot is everything the panel shows.
type Snapshot struct {
	Rows    []Row
	Regions []kernel.Region
	// Arena is the size of the shared-memory arena in bytes.
	Arena  uint32
	Steps  uint64
	Halted bool
}

// Monitor renders snapshots into a rectangle of the framebuffer.
type Monitor struct {
	fb hal.Framebuffer
	r  image.Rectangle
	dc *gg.Context
}

// New returns a monitor drawing into r of fb.
func New(fb hal.Framebuffer, r image.Rectangle) *Monitor {
	r = r.Intersect(image.Rect(0, 0, fb.Width(), fb.Height()))
	return &Monitor{fb: fb, r: r, dc: gg.NewContext(r.Dx(), r.Dy())}
}

// Bounds returns the framebuffer rectangle the panel occupies.
func (m *Monitor) Bounds() image.Rectangle { return m.r }

// rowTop is the y of the first pixel of visible row i.
func rowTop(i int) int { return headerHeight + i*rowHeight }

// Draw renders s and copies it into the framebuffer.
func (m *Monitor) Draw(s Snapshot) {
	dc := m.dc
	w, h := float64(m.r.Dx()), float64(m.r.Dy())

	dc.SetColor(colBackground)
	dc.Clear()

	dc.SetColor(colText)
	state := "run"
	if s.Halted {
		state = "halt"
	}
	dc.DrawString(fmt.Sprintf("pid prog    score  %s %d", state, s.Steps), swatchX, headerHeight-4)

	maxScore := 1
	for _, row := range s.Rows {
		maxScore = max(maxScore, row.Priority+row.Age)
	}

	visible := 0
	limit := (m.r.Dy() - headerHeight - barHeight - 2) / rowHeight
	for _, row := range s.Rows {
		if row.Status == kernel.StatusInvalid || visible >= limit {
			continue
		}
		y := float64(rowTop(visible))
		visible++

		dc.SetColor(colStatus[row.Status])
		dc.DrawRectangle(swatchX, y+3, swatchSize, swatchSize)
		dc.Fill()

		dc.SetColor(colText)
		dc.DrawString(fmt.Sprintf("%2d %-8.8s", row.PID, row.Program), swatchX+swatchSize+4, y+rowHeight-3)

		score := row.Priority + row.Age
		if score > 0 {
			x0 := w * 0.6
			dc.SetColor(colScore)
			dc.DrawRectangle(x0, y+3, (w-x0-2)*float64(score)/float64(maxScore), swatchSize)
			dc.Fill()
		}
	}

	var used uint32
	for _, r := range s.Regions {
		if r.State == kernel.Occupied {
			used += r.Size
		}
	}
	if used > 0 && s.Arena > 0 {
		dc.SetColor(colRegion)
		dc.DrawRectangle(0, h-barHeight, w*float64(min(used, s.Arena))/float64(s.Arena), barHeight)
		dc.Fill()
	}

	m.blit()
}

func (m *Monitor) blit() {
	im, ok := m.dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	for y := 0; y < m.r.Dy(); y++ {
		row := im.Pix[y*im.Stride:]
		for x := 0; x < m.r.Dx(); x++ {
			i := x * 4
			hal.SetPixel(m.fb, m.r.Min.X+x, m.r.Min.Y+y, color.RGBA{R: row[i], G: row[i+1], B: row[i+2], A: 0xFF})
		}
	}
}
