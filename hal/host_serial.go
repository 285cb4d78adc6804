//go:build !tinygo

package hal

import (
	"errors"
	"os"
	"sync"

	tty "github.com/mattn/go-tty"
)

type hostSerial struct {
	mu sync.Mutex
	r  *os.File
	w  *os.File
}

func (s *hostSerial) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, ErrNotImplemented
	}
	return s.r.Read(p)
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// ttySerial is a terminal in raw mode, so keystrokes reach the console
// unbuffered and unechoed.
type ttySerial struct {
	mu      sync.Mutex
	io      *tty.TTY
	restore func() error
}

func openTTY(path string) (*ttySerial, error) {
	var (
		t   *tty.TTY
		err error
	)
	if path == "tty" {
		t, err = tty.Open()
	} else {
		t, err = tty.OpenDevice(path)
	}
	if err != nil {
		return nil, err
	}
	restore, err := t.Raw()
	if err != nil {
		t.Close()
		return nil, err
	}
	return &ttySerial{io: t, restore: restore}, nil
}

func (s *ttySerial) Read(p []byte) (int, error) {
	n, err := s.io.Input().Read(p)
	for i := 0; i < n; i++ {
		if p[i] == '\r' {
			p[i] = '\n'
		}
	}
	return n, err
}

func (s *ttySerial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.io.Output()
	written := 0
	// raw mode disables output post-processing
	for len(p) > 0 {
		i := 0
		for i < len(p) && p[i] != '\n' {
			i++
		}
		n, err := out.Write(p[:i])
		written += n
		if err != nil {
			return written, err
		}
		if i == len(p) {
			break
		}
		if _, err := out.Write([]byte("\r\n")); err != nil {
			return written, err
		}
		written++
		p = p[i+1:]
	}
	return written, nil
}

func (s *ttySerial) Close() error {
	return errors.Join(s.restore(), s.io.Close())
}
