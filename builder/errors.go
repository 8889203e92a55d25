package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinygo-org/dualboot/layout"
)

var (
	errNoTarget    = errors.New("builder: layout has no TinyGo target")
	errEmptyPlan   = errors.New("builder: nothing to build")
	errUnknownPart = errors.New("builder: unknown input format (want .hex or .bin)")
)

// ProgramError is the failure of one program of the build plan.
type ProgramError struct {
	Program string
	Err     error
	Output  []byte
}

func (e *ProgramError) Error() string {
	return e.Program + ": " + e.Err.Error()
}

func (e *ProgramError) Unwrap() error {
	return e.Err
}

// MultiError is a list of errors from independent programs.
type MultiError struct {
	Errs []error
}

func (e *MultiError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// SegmentError indicates that an input holds data outside the flash region of
// the program it was given for, which would overwrite another program.
type SegmentError struct {
	Part    string
	Address uint32
	Size    int
	Region  layout.Region
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%s: %d bytes at 0x%08x are outside its region %s",
		e.Part, e.Size, e.Address, e.Region)
}
