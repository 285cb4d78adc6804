// Package app assembles a machine from a config and drives it from a host
// runner, one batch of instructions per tick.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"trapos/board"
	"trapos/config"
	"trapos/console"
	"trapos/hal"
	"trapos/internal/buildinfo"
	"trapos/internal/idgen"
	"trapos/kernel"
	"trapos/machine"
	"trapos/monitor"
	"trapos/tracing"
	"trapos/user"
)

const serviceName = "trapos"

// App is one booted machine attached to a HAL.
type App struct {
	cfg     *config.Config
	h       hal.HAL
	log     hal.Logger
	session string

	board   *board.Board
	kernel  *kernel.Kernel
	machine *machine.Machine

	console *console.Console
	monitor *monitor.Monitor

	input <-chan []byte
	keys  <-chan hal.KeyEvent

	otel    *tracing.OTel
	tp      *sdktrace.TracerProvider
	closers []io.Closer

	stopped bool
}

// New builds the machine described by cfg on h and boots it.
func New(h hal.HAL, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, h: h, log: h.Logger(), session: idgen.New()}

	var sinks []io.Writer
	if cfg.Run.Mode == config.ModeWindow {
		if fb := framebuffer(h); fb != nil {
			left, right := split(fb)
			a.console = console.New(fb, left)
			a.monitor = monitor.New(fb, right)
			sinks = append(sinks, a.console)
		}
	}
	if len(sinks) == 0 && h.Serial() != nil {
		sinks = append(sinks, h.Serial())
	}
	a.board = board.New(cfg.Board, sinks...)

	tracer, err := a.tracer()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	opts := []kernel.Option{
		kernel.WithMemory(a.board.RAM),
		kernel.WithConsole(a.board.UART),
		kernel.WithInterruptController(a.board.GIC),
		kernel.WithTimer(a.board.Timer),
	}
	if tracer != nil {
		opts = append(opts, kernel.WithTracer(tracer))
	}
	if a.kernel, err = kernel.New(cfg.Kernel, opts...); err != nil {
		_ = a.Close()
		return nil, err
	}

	img := machine.NewImage(cfg.Machine.ImageBase)
	if err := user.Load(img, cfg.Programs); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load programs: %w", err)
	}
	a.machine = machine.New(cfg.Machine, a.board, a.kernel, img, machine.WithLogger(a.log))
	a.machine.SetPanicHandler(func(info machine.PanicInfo) {
		showPanic(a.log, framebuffer(h), info)
	})

	a.log.WriteLineString(fmt.Sprintf("trapos %s session %s", buildinfo.Short(), idgen.Short(a.session)))
	entries, err := cfg.Entries(img)
	if err == nil {
		err = a.machine.Boot(entries...)
	}
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if s := h.Serial(); s != nil {
		a.input = pump(s)
	}
	if in := h.Input(); in != nil {
		if kbd := in.Keyboard(); kbd != nil {
			a.keys = kbd.Events()
		}
	}
	return a, nil
}

// Func adapts New to a HAL runner. The built App is stored in *out so the
// caller can Close it after the runner returns.
func Func(cfg *config.Config, out **App) hal.AppFunc {
	return func(h hal.HAL) (func() error, error) {
		a, err := New(h, cfg)
		if err != nil {
			return nil, err
		}
		if out != nil {
			*out = a
		}
		return a.Step, nil
	}
}

// Session returns the boot session id.
func (a *App) Session() string { return a.session }

// Machine returns the running machine.
func (a *App) Machine() *machine.Machine { return a.machine }

// Board returns the simulated devices.
func (a *App) Board() *board.Board { return a.board }

// Step feeds pending input to the UART, runs one tick worth of
// instructions and redraws. It returns hal.ErrStop once a headless machine
// halts; in a window the last frame stays up.
func (a *App) Step() error {
	if a.stopped {
		return nil
	}
	a.feed()

	err := a.machine.Run(context.Background(), a.cfg.Run.StepsPerTick)
	switch {
	case err == nil:
	case errors.Is(err, machine.ErrHalted):
		a.stopped = true
		steps, svcs, irqs := a.machine.Stats()
		a.log.WriteLineString(fmt.Sprintf("app: halted after %d steps (%d svc, %d irq)", steps, svcs, irqs))
	case errors.Is(err, machine.ErrPanic):
		a.stopped = true
		if a.cfg.Run.Mode == config.ModeWindow {
			return nil
		}
		return err
	default:
		a.stopped = true
		a.draw()
		return err
	}

	a.draw()
	if a.stopped && a.cfg.Run.Mode != config.ModeWindow {
		return hal.ErrStop
	}
	return nil
}

// feed moves whatever the operator typed since the last tick into the UART
// receive FIFO.
func (a *App) feed() {
	for {
		select {
		case p, ok := <-a.input:
			if !ok {
				a.input = nil
				continue
			}
			a.board.UART.Receive(p)
		case ev := <-a.keys:
			if b := ev.Bytes(); b != nil {
				a.board.UART.Receive(b)
			}
		default:
			return
		}
	}
}

func (a *App) draw() {
	if a.monitor != nil {
		a.monitor.Draw(a.snapshot())
	}
	if a.console != nil {
		_ = a.console.Flush()
	}
}

func (a *App) snapshot() monitor.Snapshot {
	procs := a.kernel.Procs()
	rows := make([]monitor.Row, 0, len(procs))
	for _, p := range procs {
		rows = append(rows, monitor.Row{ProcInfo: p, Program: a.machine.Image().Name(p.PC)})
	}
	kc := a.kernel.Config()
	return monitor.Snapshot{
		Rows:    rows,
		Regions: a.kernel.Regions(),
		Arena:   kc.ShmBase - kc.ShmFloor,
		Steps:   a.machine.Steps(),
		Halted:  a.kernel.Halted(),
	}
}

// tracer builds the configured kernel tracers, or nil when tracing is off.
func (a *App) tracer() (kernel.Tracer, error) {
	var tracers tracing.Multi
	if a.cfg.Trace.Log {
		tracers = append(tracers, tracing.NewLog(a.log, a.cfg.Kernel.TimerSource))
	}
	if len(a.cfg.Trace.Spans) > 0 {
		kinds, err := tracing.ParseKinds(a.cfg.Trace.Spans)
		if err != nil {
			return nil, err
		}
		w, err := a.spanOutput()
		if err != nil {
			return nil, err
		}
		a.tp, err = tracing.NewStdoutProvider(serviceName, buildinfo.Short(), w)
		if err != nil {
			return nil, err
		}
		tracing.Install(a.tp)
		a.otel = tracing.NewOTel(a.tp, a.session, kinds)
		tracers = append(tracers, a.otel)
	}
	switch len(tracers) {
	case 0:
		return nil, nil
	case 1:
		return tracers[0], nil
	}
	return tracers, nil
}

func (a *App) spanOutput() (io.Writer, error) {
	switch a.cfg.Trace.Output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.Create(a.cfg.Trace.Output)
	if err != nil {
		return nil, fmt.Errorf("trace output: %w", err)
	}
	a.closers = append(a.closers, f)
	return f, nil
}

// Close ends the boot span and flushes the span exporter.
func (a *App) Close() error {
	var errs []error
	if a.otel != nil {
		a.otel.Close()
	}
	if a.tp != nil {
		errs = append(errs, a.tp.Shutdown(context.Background()))
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func framebuffer(h hal.HAL) hal.Framebuffer {
	d := h.Display()
	if d == nil {
		return nil
	}
	return d.Framebuffer()
}

// split gives the console the left 60% of the screen and the monitor the rest.
func split(fb hal.Framebuffer) (left, right image.Rectangle) {
	w, h := fb.Width(), fb.Height()
	mid := w * 3 / 5
	return image.Rect(0, 0, mid, h), image.Rect(mid, 0, w, h)
}

// pump reads r on its own goroutine until it fails.
func pump(r io.Reader) <-chan []byte {
	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				ch <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}
