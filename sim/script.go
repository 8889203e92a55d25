package sim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("wrong number of arguments")
)

// ScriptError is a failed line of a script.
type ScriptError struct {
	Source string // file name, if the script was read from a file
	Line   int
	Text   string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Text, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// RunScript runs one command per line against the machine, stopping at the
// first failure. Lines are split like a shell would; # starts a comment.
//
//	power [WORD]         power-on reset, RAM filled with WORD if given
//	reset                warm reset
//	press                switch to the next image
//	switch NAME          switch to the named image
//	program NAME SP PC   write the vector table of an image
//	poke ADDR VALUE      write a RAM word
//	expect NAME          the named image is running
//	expect STATE         halted, hung or faulted
//	expect-cell VALUE    the handoff cell holds VALUE
//	expect-vtor ADDR     the vector table base is ADDR
func (m *Machine) RunScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimSpace(scanner.Text())
		args, err := shlex.Split(text)
		if err == nil && len(args) != 0 {
			err = m.command(args)
		}
		if err != nil {
			return &ScriptError{Line: n, Text: text, Err: err}
		}
	}
	return scanner.Err()
}

// RunScriptFile runs the script in the named file.
func (m *Machine) RunScriptFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = m.RunScript(f)
	var serr *ScriptError
	if errors.As(err, &serr) {
		serr.Source = path
	}
	return err
}

func (m *Machine) command(args []string) error {
	nargs := map[string]int{
		"reset": 0, "press": 0, "switch": 1, "program": 3,
		"poke": 2, "expect": 1, "expect-cell": 1, "expect-vtor": 1,
	}
	cmd := args[0]
	if want, ok := nargs[cmd]; ok && len(args)-1 != want {
		return errUsage
	}

	switch cmd {
	case "power":
		if len(args) > 2 {
			return errUsage
		}
		if len(args) == 2 {
			w, err := parseWord(args[1])
			if err != nil {
				return err
			}
			saved := m.fill
			m.fill = &w
			defer func() { m.fill = saved }()
		}
		m.PowerOn()
		return nil
	case "reset":
		m.Reset()
		return nil
	case "press":
		return m.Press()
	case "switch":
		return m.RequestSwitch(args[1])
	case "program":
		sp, err := parseWord(args[2])
		if err != nil {
			return err
		}
		entry, err := parseWord(args[3])
		if err != nil {
			return err
		}
		return m.Program(args[1], sp, entry)
	case "poke":
		addr, err := parseWord(args[1])
		if err != nil {
			return err
		}
		value, err := parseWord(args[2])
		if err != nil {
			return err
		}
		return m.Poke(addr, value)
	case "expect":
		return m.expect(args[1])
	case "expect-cell":
		want, err := parseWord(args[1])
		if err != nil {
			return err
		}
		if got := uint32(m.Tag()); got != want {
			return fmt.Errorf("cell holds 0x%08x, want 0x%08x", got, want)
		}
		return nil
	case "expect-vtor":
		want, err := parseWord(args[1])
		if err != nil {
			return err
		}
		if m.vtor != want {
			return fmt.Errorf("vtor is 0x%08x, want 0x%08x", m.vtor, want)
		}
		return nil
	}
	return fmt.Errorf("%w %q", errUnknownCommand, cmd)
}

func (m *Machine) expect(what string) error {
	switch what {
	case Halted.String(), Hung.String(), Faulted.String(), Off.String():
		if m.state.String() != what {
			return fmt.Errorf("machine is %s, want %s", m.state, what)
		}
		return nil
	}
	if m.state != Running || m.current != what {
		return fmt.Errorf("machine is %s %s, want image %s running", m.state, m.current, what)
	}
	return nil
}

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid word %q", s)
	}
	return uint32(v), nil
}
