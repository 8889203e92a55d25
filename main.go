package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/tinygo-org/dualboot/builder"
	"github.com/tinygo-org/dualboot/diagnostics"
	"github.com/tinygo-org/dualboot/layout"
	"github.com/tinygo-org/dualboot/monitor"
	"github.com/tinygo-org/dualboot/sim"
)

const version = "0.1.0"

const usageText = `dualboot manages a boot selector and its application images.

usage: dualboot <command> [arguments]

commands:
  check    validate a layout and print it
  gen      generate the board package shared by all programs
  ld       write linker scripts and TinyGo targets
  build    build the selector and every image with TinyGo, then merge them
  merge    merge built programs into one flash image
  inspect  check the vector tables of a flash image against a layout
  sim      run a script against the simulated chip
  monitor  open a serial console to the board
  ports    list serial ports
  version  print the version

Use "dualboot <command> -h" for the flags of a command.
`

// cliLogger writes leveled messages to stderr.
type cliLogger struct {
	w       io.Writer
	verbose bool
}

func (l *cliLogger) log(level, color, msg string, keysAndValues []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%-5s\x1b[0m %s", color, level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	fmt.Fprintln(l.w, b.String())
}

func (l *cliLogger) Debug(msg string, keysAndValues ...interface{}) {
	if l.verbose {
		l.log("debug", "\x1b[90m", msg, keysAndValues)
	}
}

func (l *cliLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log("info", "\x1b[32m", msg, keysAndValues)
}

func (l *cliLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log("error", "\x1b[31m", msg, keysAndValues)
}

// logOutput returns f for colored output if it is a terminal, and otherwise a
// writer that strips the escape sequences.
func logOutput(f *os.File) io.Writer {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return colorable.NewColorable(f)
	}
	return colorable.NewNonColorable(f)
}

// handleError prints err as diagnostics and exits.
func handleError(err error) {
	if err == nil {
		return
	}
	wd, werr := os.Getwd()
	if werr != nil {
		// Paths are then printed as they are.
		wd = ""
	}
	diagnostics.CreateDiagnostics(err).WriteTo(os.Stderr, wd)
	os.Exit(1)
}

func usage(command string) {
	if command == "" {
		fmt.Fprint(os.Stderr, usageText)
		return
	}
	fmt.Fprintf(os.Stderr, "usage: dualboot %s [flags]%s\n", command, commandArgs[command])
	flag.PrintDefaults()
}

var commandArgs = map[string]string{
	"inspect": " flash.hex",
	"sim":     " [script]",
}

func main() {
	if len(os.Args) < 2 {
		usage("")
		os.Exit(1)
	}
	command := os.Args[1]

	layoutPath := flag.String("layout", "", "layout file (default: the built-in black pill layout)")
	verbose := flag.Bool("v", false, "print debug messages")
	dir := flag.String("dir", "build", "directory for generated targets and build outputs")
	var (
		tinygo, format, extra, output *string
		port                          *string
		baud                          *int
		seed                          *int64
		hexPath                       *string
		stuck                         *bool
	)
	switch command {
	case "build":
		tinygo = flag.String("tinygo", "tinygo", "TinyGo command, split like a shell would")
		format = flag.String("format", "hex", "output format: hex or bin")
		extra = flag.String("args", "", "extra arguments for every tinygo build")
	case "merge":
		format = flag.String("format", "hex", "format of the built programs: hex or bin")
		output = flag.String("o", "", "merged output (default: DIR/flash.hex)")
	case "sim":
		seed = flag.Int64("seed", 1, "seed for the power-on RAM contents")
		hexPath = flag.String("hex", "", "flash image to load before power-on")
		stuck = flag.Bool("stuck-reset", false, "ignore reset requests")
	case "monitor":
		port = flag.String("port", "", "serial port (default: the only one present)")
		baud = flag.Int("baud", 115200, "baud rate")
	}
	flag.Usage = func() { usage(command) }
	flag.CommandLine.Parse(os.Args[2:])

	logger := &cliLogger{w: logOutput(os.Stderr), verbose: *verbose}

	load := func() *layout.Layout {
		l, err := layout.Load(*layoutPath)
		handleError(err)
		return l
	}

	switch command {
	case "check":
		l := load()
		fmt.Printf("chip      %s (target %s)\n", l.Chip, l.Target)
		fmt.Printf("flash     %s\n", l.Flash)
		fmt.Printf("ram       %s, usable below %s\n", l.RAM, l.Cell)
		fmt.Printf("selector  %s\n", l.Selector)
		for _, img := range l.Images {
			fmt.Printf("image %-3s %s tag %s\n", img.Name, img.Region(), img.Tag)
		}
		fmt.Printf("unknown tags: %s (default %s)\n", l.Fallback, l.Default)
	case "gen":
		path, err := builder.WriteBoard(load(), ".")
		handleError(err)
		logger.Info("generated", "file", path)
	case "ld":
		written, err := builder.WriteTargets(load(), *dir)
		handleError(err)
		for _, path := range written {
			logger.Debug("wrote", "file", path)
		}
		logger.Info("generated targets", "dir", *dir, "files", len(written))
	case "build":
		l := load()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		absDir, err := filepath.Abs(*dir)
		handleError(err)
		_, err = builder.WriteBoard(l, ".")
		handleError(err)
		_, err = builder.WriteTargets(l, absDir)
		handleError(err)
		cmds, err := builder.Plan(l, builder.PlanOptions{
			Dir:       absDir,
			TinyGo:    *tinygo,
			Format:    *format,
			ExtraArgs: *extra,
		})
		handleError(err)
		handleError(builder.Run(ctx, cmds, ".", logger))
		handleError(mergeTo(l, absDir, *format, filepath.Join(absDir, "flash.hex"), logger))
	case "merge":
		out := *output
		if out == "" {
			out = filepath.Join(*dir, "flash.hex")
		}
		handleError(mergeTo(load(), *dir, *format, out, logger))
	case "inspect":
		if flag.NArg() != 1 {
			usage(command)
			os.Exit(1)
		}
		l := load()
		f, err := os.Open(flag.Arg(0))
		handleError(err)
		mem, err := builder.ReadHex(f)
		f.Close()
		handleError(err)
		ok := true
		for _, r := range builder.Inspect(mem, l) {
			fmt.Println(r)
			ok = ok && len(r.Problems) == 0
		}
		if !ok {
			os.Exit(1)
		}
	case "sim":
		l := load()
		opts := []sim.Option{sim.WithLogger(logger), sim.WithSeed(*seed)}
		if *stuck {
			opts = append(opts, sim.WithStuckReset())
		}
		m := sim.New(l, opts...)
		if *hexPath != "" {
			f, err := os.Open(*hexPath)
			handleError(err)
			err = m.LoadHex(f)
			f.Close()
			handleError(err)
		}
		logger.verbose = true
		var err error
		switch flag.NArg() {
		case 0:
			err = m.RunScript(os.Stdin)
		case 1:
			err = m.RunScriptFile(flag.Arg(0))
		default:
			usage(command)
			os.Exit(1)
		}
		handleError(err)
		fmt.Printf("%s %s\n", m.State(), m.Current())
	case "monitor":
		l := load()
		var names []string
		for _, img := range l.Images {
			names = append(names, img.Name)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := monitor.Run(ctx, monitor.Options{
			Port:     *port,
			BaudRate: *baud,
			Images:   names,
			Output:   colorable.NewColorableStdout(),
		}, logger)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		handleError(err)
	case "ports":
		ports, err := monitor.Ports()
		handleError(err)
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
	case "version":
		fmt.Printf("dualboot version %s\n", version)
	case "help", "-h", "--help":
		usage("")
	default:
		fmt.Fprintln(os.Stderr, "Unknown command:", command)
		usage("")
		os.Exit(1)
	}
}

// mergeTo merges the built programs in dir into one Intel HEX file.
func mergeTo(l *layout.Layout, dir, format, out string, logger *cliLogger) error {
	mem, err := builder.Merge(builder.Parts(l, dir, format))
	if err != nil {
		return err
	}
	for _, r := range builder.Inspect(mem, l) {
		if len(r.Problems) != 0 {
			logger.Error("suspicious image", "program", r.Name, "problem", r.Problems[0])
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := builder.WriteHex(f, mem); err != nil {
		f.Close()
		return err
	}
	logger.Info("merged", "output", out)
	return f.Close()
}
