// Package monitor is a serial console for boards running the boot selector.
// It prints what the images write to their UART, highlighting the banner
// each image prints at startup, and forwards keystrokes to the board.
package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-tty"
	"go.bug.st/serial"
)

// BannerPrefix starts every line an image prints about itself.
const BannerPrefix = "dualboot:"

var (
	errNoPort        = errors.New("monitor: no serial port found")
	errMultiplePorts = errors.New("monitor: multiple serial ports found, select one with -port")
)

// Logger receives status messages with optional key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Options configure a monitor session.
type Options struct {
	Port     string // empty selects the only serial port present
	BaudRate int    // defaults to 115200
	Images   []string
	Output   io.Writer // defaults to a colorable stdout
}

// Ports returns the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// SelectPort returns port if given, or else the only serial port present.
func SelectPort(port string) (string, error) {
	if port != "" {
		return port, nil
	}
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	return pickPort(ports)
}

func pickPort(ports []string) (string, error) {
	switch len(ports) {
	case 0:
		return "", errNoPort
	case 1:
		return ports[0], nil
	default:
		return "", fmt.Errorf("%w: %s", errMultiplePorts, strings.Join(ports, ", "))
	}
}

// Run connects to the board and copies between it and the terminal until ctx
// is canceled, Ctrl-C is pressed or the port is closed.
func Run(ctx context.Context, opts Options, logger Logger) error {
	if opts.BaudRate == 0 {
		opts.BaudRate = 115200
	}
	if opts.Output == nil {
		opts.Output = colorable.NewColorableStdout()
	}
	name, err := SelectPort(opts.Port)
	if err != nil {
		return err
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: opts.BaudRate})
	if err != nil {
		return fmt.Errorf("monitor: open %s: %w", name, err)
	}
	defer port.Close()

	term, err := tty.Open()
	if err != nil {
		return err
	}
	defer term.Close()

	logger.Info("connected", "port", name, "baud", opts.BaudRate)
	fmt.Fprintf(opts.Output, "Connected to %s. Press Ctrl-C to exit.\n", name)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)
	go func() {
		errs <- CopyLines(opts.Output, port, opts.Images)
	}()
	go func() {
		errs <- forwardKeys(ctx, cancel, term, port)
	}()

	select {
	case <-ctx.Done():
		logger.Debug("disconnecting", "port", name)
		return nil
	case err := <-errs:
		return err
	}
}

// forwardKeys sends every keystroke to the board. Ctrl-C ends the session.
func forwardKeys(ctx context.Context, cancel context.CancelFunc, term *tty.TTY, w io.Writer) error {
	for ctx.Err() == nil {
		r, err := term.ReadRune()
		if err != nil {
			return err
		}
		if r == 3 {
			cancel()
			return nil
		}
		if _, err := w.Write([]byte(string(r))); err != nil {
			return err
		}
	}
	return nil
}

// CopyLines copies lines from r to w, highlighting image banners. It returns
// nil at the end of r.
func CopyLines(w io.Writer, r io.Reader, images []string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if _, err := fmt.Fprintln(w, Highlight(line, images)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

var colors = []string{"\x1b[1;36m", "\x1b[1;35m", "\x1b[1;33m", "\x1b[1;32m"}

const reset = "\x1b[0m"

// Highlight colors a banner line by the image that printed it, as in
// "dualboot: image b started". Other lines are returned unchanged.
func Highlight(line string, images []string) string {
	if !strings.HasPrefix(line, BannerPrefix) {
		return line
	}
	fields := strings.Fields(line)
	for i := 1; i+1 < len(fields); i++ {
		if fields[i] != "image" {
			continue
		}
		for j, name := range images {
			if fields[i+1] == name {
				return colors[j%len(colors)] + line + reset
			}
		}
	}
	return line
}
