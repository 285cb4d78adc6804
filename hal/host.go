//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// HostConfig selects the host devices.
type HostConfig struct {
	Width  int
	Height int
	// TTY, when set, puts that terminal device in raw mode and uses it as the
	// serial line instead of stdin/stdout. "tty" opens the controlling terminal.
	TTY string
}

func (c HostConfig) withDefaults() HostConfig {
	if c.Width <= 0 {
		c.Width = 480
	}
	if c.Height <= 0 {
		c.Height = 320
	}
	return c
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	serial Serial
	close  func() error
}

func newHost(cfg HostConfig) (*hostHAL, error) {
	cfg = cfg.withDefaults()
	h := &hostHAL{
		logger: &hostLogger{w: os.Stderr},
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
		kbd:    newHostKeyboard(),
		serial: &hostSerial{r: os.Stdin, w: os.Stdout},
		close:  func() error { return nil },
	}
	if cfg.TTY != "" {
		s, err := openTTY(cfg.TTY)
		if err != nil {
			return nil, fmt.Errorf("open tty %s: %w", cfg.TTY, err)
		}
		h.serial = s
		h.close = s.Close
	}
	return h, nil
}

// New returns a host HAL implementation and a function releasing its devices.
func New(cfg HostConfig) (HAL, func() error, error) {
	h, err := newHost(cfg)
	if err != nil {
		return nil, nil, err
	}
	return h, h.close, nil
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Serial() Serial   { return h.serial }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

// NewLogger returns a Logger writing lines to w. It is safe for concurrent use.
func NewLogger(w io.Writer) Logger {
	return &hostLogger{w: w}
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
