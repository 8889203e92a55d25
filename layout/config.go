package layout

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// Addr is a 32-bit address or tag. In YAML it may be written as an integer
// (0x0800_4000) or as a string ("0x08004000").
type Addr uint32

func (a Addr) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

func (a *Addr) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := parseWord(raw)
	if err != nil {
		return fmt.Errorf("invalid address %v: %w", raw, err)
	}
	*a = Addr(v)
	return nil
}

func (a Addr) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// Word is a 32-bit value that is not an address, such as a handoff tag. It is
// written in YAML like an Addr.
type Word uint32

func (w Word) String() string {
	return fmt.Sprintf("0x%08x", uint32(w))
}

func (w *Word) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := parseWord(raw)
	if err != nil {
		return fmt.Errorf("invalid word %v: %w", raw, err)
	}
	*w = Word(v)
	return nil
}

func (w Word) MarshalYAML() (interface{}, error) {
	return w.String(), nil
}

// Size is a byte count. In YAML it may be an integer or a human readable size
// such as "16KB" (powers of 1024).
type Size uint32

func (s Size) String() string {
	return bytesize.New(float64(s)).String()
}

func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if str, ok := raw.(string); ok {
		if _, err := strconv.ParseUint(strings.ReplaceAll(str, "_", ""), 0, 32); err != nil {
			b, err := bytesize.Parse(str)
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", str, err)
			}
			if float64(b) > math.MaxUint32 || float64(b) != math.Trunc(float64(b)) {
				return fmt.Errorf("invalid size %q: not a 32-bit byte count", str)
			}
			*s = Size(b)
			return nil
		}
	}
	v, err := parseWord(raw)
	if err != nil {
		return fmt.Errorf("invalid size %v: %w", raw, err)
	}
	*s = Size(v)
	return nil
}

func (s Size) MarshalYAML() (interface{}, error) {
	return uint32(s), nil
}

func parseWord(raw interface{}) (uint32, error) {
	switch v := raw.(type) {
	case int:
		if v < 0 || uint64(v) > math.MaxUint32 {
			return 0, errOutOfRange
		}
		return uint32(v), nil
	case uint64:
		if v > math.MaxUint32 {
			return 0, errOutOfRange
		}
		return uint32(v), nil
	case string:
		n, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 0, 32)
		if err != nil {
			return 0, err
		}
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("unexpected %T", raw)
	}
}

// ParseError is returned for layout files that are not valid YAML or do not
// match the layout schema.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Lines returns the messages reported by the YAML decoder, one per problem.
func (e *ParseError) Lines() []string {
	if te, ok := e.Err.(*yaml.TypeError); ok {
		return te.Errors
	}
	return []string{strings.TrimPrefix(e.Err.Error(), "yaml: ")}
}

// Parse reads a layout from YAML. Unknown keys are rejected. The returned
// layout is not validated.
func Parse(data []byte, source string) (*Layout, error) {
	l := &Layout{}
	if err := yaml.UnmarshalStrict(data, l); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	l.Source = source
	l.setDefaults()
	return l, nil
}

// Load reads and validates a layout file. An empty path returns Default().
func Load(path string) (*Layout, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Marshal returns the layout as YAML.
func (l *Layout) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}
