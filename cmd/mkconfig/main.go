package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trapos/config"
)

func main() {
	var (
		inPath  = flag.String("in", "", "Config file or URL to check (check mode).")
		outPath = flag.String("out", "", "Output file (dump mode, default stdout).")
		mode    = flag.String("mode", "dump", "dump|check.")
	)
	flag.Parse()

	switch strings.ToLower(*mode) {
	case "dump":
		if err := dump(*outPath); err != nil {
			fatalf("dump: %v", err)
		}
	case "check":
		if *inPath == "" {
			fatalf("usage: mkconfig -mode check -in trapos.yaml\n       mkconfig [-mode dump] [-out trapos.yaml]")
		}
		if err := check(*inPath, os.Stdout); err != nil {
			fatalf("check: %v", err)
		}
	default:
		fatalf("unknown mode: %s", *mode)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

// dump writes the built-in configuration as YAML.
func dump(outPath string) error {
	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return encode(w, config.DefaultConfig())
}

func encode(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// check loads location, validates it and prints a summary.
func check(location string, w io.Writer) error {
	cfg, err := config.Load(context.Background(), location)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(cfg.Init))
	for _, e := range cfg.Init {
		names = append(names, e.Program)
	}
	_, err = fmt.Fprintf(w, "ok: %s mode, %d slots, init %s\n", cfg.Run.Mode, cfg.Kernel.MaxProcs, strings.Join(names, ","))
	return err
}
