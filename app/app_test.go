package app

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapos/config"
	"trapos/hal"
	"trapos/internal/idgen"
	"trapos/machine"
	"trapos/user"
)

type testHAL struct {
	log    bytes.Buffer
	fb     hal.Framebuffer
	serial *testSerial
	keys   chan hal.KeyEvent
}

func (h *testHAL) Logger() hal.Logger   { return hal.NewLogger(&h.log) }
func (h *testHAL) Display() hal.Display { return h }
func (h *testHAL) Input() hal.Input     { return h }
func (h *testHAL) Serial() hal.Serial   { return h.serial }

func (h *testHAL) Framebuffer() hal.Framebuffer { return h.fb }
func (h *testHAL) Keyboard() hal.Keyboard       { return h }
func (h *testHAL) Events() <-chan hal.KeyEvent  { return h.keys }

type testSerial struct {
	in  io.Reader
	mu  sync.Mutex
	out bytes.Buffer
}

func (s *testSerial) Read(p []byte) (int, error) { return s.in.Read(p) }

func (s *testSerial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Write(p)
}

func (s *testSerial) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func newTestHAL(input string) *testHAL {
	return &testHAL{
		fb:     hal.NewFramebuffer(320, 200),
		serial: &testSerial{in: strings.NewReader(input)},
		keys:   make(chan hal.KeyEvent, 8),
	}
}

func headless() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Run.Mode = config.ModeHeadless
	cfg.Programs.Spinners = []user.Spinner{{Name: "spin", Tag: "S", Every: 4, Rounds: 2}}
	cfg.Programs.Console.Spawn = nil
	cfg.Init = []config.InitEntry{{Program: "spin"}}
	return cfg
}

func stubSession(t *testing.T) {
	old := idgen.NewFunc
	t.Cleanup(func() { idgen.NewFunc = old })
	idgen.NewFunc = func() string { return "0badcafe-0000-0000-0000-000000000000" }
}

func runUntilStop(t *testing.T, step func() error, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if err := step(); err != nil {
			require.ErrorIs(t, err, hal.ErrStop)
			return
		}
	}
	t.Fatalf("no stop after %d ticks", limit)
}

func TestHeadlessRunsToHalt(t *testing.T) {
	stubSession(t)
	h := newTestHAL("")
	cfg := headless()
	cfg.Trace.Log = true

	a, err := New(h, cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "0badcafe-0000-0000-0000-000000000000", a.Session())

	runUntilStop(t, a.Step, 10)
	assert.Equal(t, "S1\nS2\n", h.serial.String())

	log := h.log.String()
	assert.Contains(t, log, "session 0badcafe")
	assert.Contains(t, log, "[R]")
	assert.Contains(t, log, "[EXIT]")
	assert.Contains(t, log, "[HALT]")
	assert.Contains(t, log, "app: halted after")

	assert.NoError(t, a.Step(), "a stopped app stays quiet")
}

func TestSerialInputReachesConsole(t *testing.T) {
	h := newTestHAL("run spin\n")
	cfg := headless()
	cfg.Init = []config.InitEntry{{Program: user.NameConsole}}

	a, err := New(h, cfg)
	require.NoError(t, err)
	defer a.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(h.serial.String(), "S2\n") {
		require.True(t, time.Now().Before(deadline), "spinner output never arrived: %q", h.serial.String())
		require.NoError(t, a.Step())
		time.Sleep(time.Millisecond)
	}
	assert.Contains(t, h.serial.String(), "run spin")
}

func TestWindowDrawsConsoleAndMonitor(t *testing.T) {
	h := newTestHAL("")
	cfg := headless()
	cfg.Run.Mode = config.ModeWindow

	var a *App
	step, err := Func(cfg, &a)(h)
	require.NoError(t, err)
	require.NotNil(t, a)
	defer a.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, step(), "a halted window keeps running")
	}
	assert.True(t, a.Machine().Kernel().Halted())
	assert.Empty(t, h.serial.String(), "window mode prints on the framebuffer")

	lit := 0
	for y := 0; y < h.fb.Height(); y++ {
		for x := 0; x < h.fb.Width()*3/5; x++ {
			if hal.Pixel(h.fb, x, y) != (hal.Pixel(h.fb, 0, h.fb.Height()-1)) {
				lit++
			}
		}
	}
	assert.Positive(t, lit, "console text drawn")
}

func TestKeyboardFeedsUART(t *testing.T) {
	h := newTestHAL("")
	cfg := headless()
	cfg.Init = []config.InitEntry{{Program: user.NameConsole}}

	a, err := New(h, cfg)
	require.NoError(t, err)
	defer a.Close()

	for _, r := range "kill 9" {
		h.keys <- hal.KeyEvent{Press: true, Rune: r}
	}
	h.keys <- hal.KeyEvent{Press: false, Rune: 'x'}
	h.keys <- hal.KeyEvent{Press: true, Code: hal.KeyEnter}

	require.NoError(t, a.Step())
	assert.Contains(t, h.serial.String(), "kill 9")
	assert.NotContains(t, h.serial.String(), "x")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := headless()
	cfg.Init = []config.InitEntry{{Program: "ghost"}}
	_, err := New(newTestHAL(""), cfg)
	assert.ErrorContains(t, err, "ghost")
}

func TestSpanOutputToFile(t *testing.T) {
	h := newTestHAL("")
	cfg := headless()
	cfg.Trace.Spans = []string{"svc"}
	cfg.Trace.Output = t.TempDir() + "/spans.json"

	a, err := New(h, cfg)
	require.NoError(t, err)
	runUntilStop(t, a.Step, 10)
	require.NoError(t, a.Close())

	assert.FileExists(t, cfg.Trace.Output)
}

func TestPanicScreen(t *testing.T) {
	var log bytes.Buffer
	fb := hal.NewFramebuffer(200, 100)
	showPanic(hal.NewLogger(&log), fb, machine.PanicInfo{PID: 3, PC: 0x8010, Value: errors.New("boom")})

	assert.Contains(t, log.String(), "trapos panic:\npid: 3 pc: 0x00008010\npanic: boom\nstack: unavailable\n")

	white := hal.Pixel(fb, fb.Width()-1, fb.Height()-1)
	dark := 0
	for y := 0; y < panicFontHeight; y++ {
		for x := 0; x < 60; x++ {
			if hal.Pixel(fb, x, y) != white {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}

func TestTakeRunes(t *testing.T) {
	p, r := takeRunes("héllo", 2)
	assert.Equal(t, "hé", p)
	assert.Equal(t, "llo", r)

	p, r = takeRunes("ab", 5)
	assert.Equal(t, "ab", p)
	assert.Empty(t, r)
}
