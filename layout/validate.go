package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinygo-org/dualboot/handoff"
)

var errOutOfRange = errors.New("value does not fit in 32 bits")

// Error is a single problem in a layout, attached to the field it was found in
// (for example "images[1].origin").
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Msg
}

// Errors is the list of problems found in one layout.
type Errors struct {
	Source string
	Errs   []error
}

func (e Errors) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	prefix := "layout"
	if e.Source != "" {
		prefix = e.Source
	}
	return prefix + ": " + strings.Join(msgs, "; ")
}

// Validate checks the layout and returns an Errors value listing every
// problem, or nil.
func (l *Layout) Validate() error {
	v := validator{}

	if l.Flash.Size == 0 {
		v.errorf("flash.size", "must not be zero")
	}
	if l.Flash.End() > 1<<32 {
		v.errorf("flash", "ends beyond the 32-bit address space")
	}
	if l.RAM.Size == 0 {
		v.errorf("ram.size", "must not be zero")
	}
	if l.RAM.End() > 1<<32 {
		v.errorf("ram", "ends beyond the 32-bit address space")
	}
	if l.Flash.Overlaps(l.RAM) {
		v.errorf("ram", "overlaps flash")
	}

	// The cell is excluded from RAM by ending the linker RAM region at its
	// address, so it must be inside RAM and leave room for the stack below.
	cell := uint32(l.Cell)
	switch {
	case cell%4 != 0:
		v.errorf("cell", "%s is not word aligned", l.Cell)
	case !l.RAM.Contains(cell) || uint64(cell)+4 > l.RAM.End():
		v.errorf("cell", "%s is not inside RAM %s", l.Cell, l.RAM)
	case uint64(cell)-uint64(l.RAM.Origin) <= uint64(l.StackSize):
		v.errorf("cell", "%s leaves no RAM below it beyond the %s stack", l.Cell, l.StackSize)
	}

	align := uint32(l.VectorAlign)
	if align < 128 || align&(align-1) != 0 {
		v.errorf("vector_align", "%d is not a power of two of at least 128", align)
		align = 128
	}

	if l.Selector.Size == 0 {
		v.errorf("selector.size", "must not be zero")
	} else if !l.Selector.Within(l.Flash) {
		v.errorf("selector", "%s is not inside flash %s", l.Selector, l.Flash)
	}
	if l.Selector.Origin != l.Flash.Origin {
		v.errorf("selector.origin", "%s must be the flash origin %s, where the reset vector is fetched", l.Selector.Origin, l.Flash.Origin)
	}

	if len(l.Images) == 0 {
		v.errorf("images", "at least one image is required")
	}
	names := map[string]int{}
	idents := map[string]int{}
	tags := map[Word]int{}
	for i, img := range l.Images {
		field := fmt.Sprintf("images[%d]", i)
		if !isIdentifier(img.Name) {
			v.errorf(field+".name", "%q is not a valid image name (letters, digits and underscores)", img.Name)
		} else if j, ok := names[img.Name]; ok {
			v.errorf(field+".name", "%q is already used by images[%d]", img.Name, j)
		} else if j, ok := idents[img.Ident()]; ok {
			v.errorf(field+".name", "%q clashes with %q of images[%d] in the generated Go identifiers", img.Name, l.Images[j].Name, j)
		} else {
			names[img.Name] = i
			idents[img.Ident()] = i
		}

		if img.HandoffTag() == handoff.None {
			v.errorf(field+".tag", "must not be the neutral value %s", handoff.None)
		} else if j, ok := tags[img.Tag]; ok {
			v.errorf(field+".tag", "%s is already used by images[%d]", img.Tag, j)
		} else {
			tags[img.Tag] = i
		}

		r := img.Region()
		switch {
		case img.Size == 0:
			v.errorf(field+".size", "must not be zero")
		case !r.Within(l.Flash):
			v.errorf(field, "%s is not inside flash %s", r, l.Flash)
		case r.Overlaps(l.Selector):
			v.errorf(field, "%s overlaps the selector %s", r, l.Selector)
		}
		if uint32(img.Origin)%align != 0 {
			v.errorf(field+".origin", "%s is not aligned to %d bytes as required by VTOR", img.Origin, align)
		}
		for j := 0; j < i; j++ {
			if r.Overlaps(l.Images[j].Region()) {
				v.errorf(field, "%s overlaps images[%d]", r, j)
			}
		}
	}

	switch l.Fallback {
	case FallbackDefault, FallbackHalt:
	default:
		v.errorf("fallback", "unknown policy %q (want %q or %q)", l.Fallback, FallbackDefault, FallbackHalt)
	}
	if _, ok := l.Lookup(l.Default); !ok {
		v.errorf("default", "no image named %q", l.Default)
	}

	if len(v.errs) == 0 {
		return nil
	}
	return Errors{Source: l.Source, Errs: v.errs}
}

type validator struct {
	errs []error
}

func (v *validator) errorf(field, format string, args ...interface{}) {
	v.errs = append(v.errs, &Error{Field: field, Msg: fmt.Sprintf(format, args...)})
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
