//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"trapos/app"
	"trapos/config"
	"trapos/hal"
)

func main() {
	var (
		location string
		headless bool
		hz       int
		ticks    uint64
		steps    int
		ttyPath  string
		spans    string
		traceLog bool
	)
	flag.StringVar(&location, "config", "", "YAML config file or URL (defaults built in).")
	flag.BoolVar(&headless, "headless", false, "Run without a window; the console is stdin/stdout.")
	flag.IntVar(&hz, "hz", 0, "Tick rate in headless mode.")
	flag.Uint64Var(&ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = until halt).")
	flag.IntVar(&steps, "steps", 0, "Instructions executed per tick.")
	flag.StringVar(&ttyPath, "tty", "", `Raw terminal for the console ("tty" for the controlling terminal).`)
	flag.StringVar(&spans, "trace", "", "Comma-separated span kinds to export: dispatch,svc,irq,all.")
	flag.BoolVar(&traceLog, "trace-log", false, "Log [prev->next] dispatch lines.")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.DefaultConfig()
	if location != "" {
		var err error
		if cfg, err = config.Load(ctx, location); err != nil {
			fatal(err)
		}
	}
	if headless {
		cfg.Run.Mode = config.ModeHeadless
	}
	if hz > 0 {
		cfg.Run.Hz = hz
	}
	if ticks > 0 {
		cfg.Run.Ticks = ticks
	}
	if steps > 0 {
		cfg.Run.StepsPerTick = steps
	}
	if ttyPath != "" {
		cfg.Run.TTY = ttyPath
	}
	if spans != "" {
		cfg.Trace.Spans = strings.Split(spans, ",")
	}
	if traceLog {
		cfg.Trace.Log = true
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	host := hal.HostConfig{Width: cfg.Run.Width, Height: cfg.Run.Height, TTY: cfg.Run.TTY}
	var a *app.App
	var err error
	if cfg.Run.Mode == config.ModeHeadless {
		err = hal.RunHeadless(ctx, app.Func(cfg, &a), hal.HeadlessConfig{Hz: cfg.Run.Hz, Ticks: cfg.Run.Ticks, Host: host})
	} else {
		err = hal.RunWindow(app.Func(cfg, &a), host)
	}
	if a != nil {
		if cerr := a.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
