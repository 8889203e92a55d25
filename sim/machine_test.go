package sim

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/layout"
)

const (
	cellAddr = 0x2001_FFF8
	originA  = 0x0800_4000
	originB  = 0x0802_4000
)

func powered(t *testing.T, opts ...Option) *Machine {
	t.Helper()
	m := New(layout.Default(), opts...)
	m.PowerOn()
	if m.State() != Running {
		t.Fatalf("after power-on: %s", m.State())
	}
	return m
}

func eventStrings(events []Event) []string {
	s := make([]string, len(events))
	for i, e := range events {
		s[i] = e.String()
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	for _, img := range layout.Default().Images {
		for _, from := range []string{"a", "b"} {
			m := powered(t, WithPowerOnWord(0))
			if from != m.Current() {
				if err := m.RequestSwitch(from); err != nil {
					t.Fatal(err)
				}
			}
			if err := m.RequestSwitch(img.Name); err != nil {
				t.Fatal(err)
			}
			if m.Current() != img.Name {
				t.Errorf("%s -> %s: running %q", from, img.Name, m.Current())
			}
			if m.VTOR() != uint32(img.Origin) {
				t.Errorf("%s -> %s: vtor = 0x%08x", from, img.Name, m.VTOR())
			}
			if m.Tag() != handoff.None {
				t.Errorf("%s -> %s: cell = %s after boot", from, img.Name, m.Tag())
			}
		}
	}
}

func TestTagConsumedOnce(t *testing.T) {
	m := powered(t)
	if err := m.RequestSwitch("b"); err != nil {
		t.Fatal(err)
	}
	if m.Current() != "b" {
		t.Fatalf("running %q, want b", m.Current())
	}

	// A second reset without a new request falls back.
	n := len(m.Events())
	m.Reset()
	if m.Current() != "a" {
		t.Errorf("second boot runs %q, want the default image a", m.Current())
	}
	var kinds []EventKind
	for _, e := range m.Events()[n:] {
		kinds = append(kinds, e.Kind)
	}
	if len(kinds) < 3 || kinds[2] != EventFallback {
		t.Errorf("second boot events = %v", kinds)
	}
}

// The cell holds the tag of image B at reset.
func TestBootImageB(t *testing.T) {
	m := powered(t)
	if err := m.Poke(cellAddr, uint32(handoff.TagImageB)); err != nil {
		t.Fatal(err)
	}
	m.Reset()
	if m.VTOR() != originB {
		t.Errorf("vtor = 0x%08x, want 0x%08x", m.VTOR(), originB)
	}
	if m.Current() != "b" || m.SP() != cellAddr {
		t.Errorf("running %q with sp 0x%08x", m.Current(), m.SP())
	}
}

// Indeterminate power-on contents boot the default image.
func TestPowerOnFallsBack(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero", WithPowerOnWord(0)},
		{"ones", WithPowerOnWord(0xFFFF_FFFF)},
		{"pattern", WithPowerOnWord(0xDEAD_BEEE)},
		{"random", WithSeed(42)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := powered(t, tc.opt)
			if m.Current() != "a" || m.VTOR() != originA {
				t.Errorf("running %q, vtor 0x%08x", m.Current(), m.VTOR())
			}
			if m.Tag() != handoff.None {
				t.Errorf("cell = %s after boot", m.Tag())
			}
		})
	}
}

// The cell is cleared before the jump into the requested image.
func TestSwitchSequence(t *testing.T) {
	m := powered(t, WithPowerOnWord(0))
	n := len(m.Events())
	if err := m.RequestSwitch("b"); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"cell <- 0xcafebabe",
		"dsb",
		"reset-request in a",
		"reset",
		"cell <- 0x00000000",
		"select b at 0x08024000 (tag 0xcafebabe)",
		"quiesce",
		"vtor <- 0x08024000",
		"dsb",
		"isb",
		"jump sp=0x2001fff8 entry=0x08024201",
	}
	if got := eventStrings(m.Events()[n:]); !reflect.DeepEqual(got, want) {
		t.Errorf("events:\n got %q\nwant %q", got, want)
	}
}

func TestStuckReset(t *testing.T) {
	m := powered(t, WithStuckReset(), WithSpinLimit(10))
	if err := m.RequestSwitch("b"); err != nil {
		t.Fatal(err)
	}
	if m.State() != Hung || m.Current() != "a" {
		t.Fatalf("state %s in %q, want hung in a", m.State(), m.Current())
	}
	if m.Tag() != handoff.TagImageB {
		t.Errorf("cell = %s, want the pending request", m.Tag())
	}
	if err := m.Press(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Press on a hung core = %v", err)
	}

	// An external reset still honors the request.
	m.Reset()
	if m.Current() != "b" {
		t.Errorf("after reset running %q, want b", m.Current())
	}
}

func TestHaltPolicy(t *testing.T) {
	l := layout.Default()
	l.Fallback = layout.FallbackHalt
	m := New(l, WithPowerOnWord(0xFFFF_FFFF), WithSpinLimit(5))
	m.PowerOn()
	if m.State() != Halted || m.Current() != "" {
		t.Fatalf("state %s in %q, want halted", m.State(), m.Current())
	}
	if m.VTOR() != uint32(l.Flash.Origin) {
		t.Errorf("vtor moved to 0x%08x while halting", m.VTOR())
	}

	if err := m.Poke(cellAddr, uint32(handoff.TagImageA)); err != nil {
		t.Fatal(err)
	}
	m.Reset()
	if m.Current() != "a" {
		t.Errorf("running %q, want a", m.Current())
	}
}

func TestUnknownImage(t *testing.T) {
	m := powered(t, WithPowerOnWord(0))
	n := len(m.Events())
	if err := m.RequestSwitch("c"); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("RequestSwitch(c) = %v", err)
	}
	if len(m.Events()) != n || m.Current() != "a" {
		t.Errorf("unknown image changed the machine: %v", eventStrings(m.Events()[n:]))
	}
}

func TestPressCycles(t *testing.T) {
	m := powered(t)
	var seen []string
	for i := 0; i < 4; i++ {
		if err := m.Press(); err != nil {
			t.Fatal(err)
		}
		seen = append(seen, m.Current())
	}
	if want := []string{"b", "a", "b", "a"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("press sequence = %v, want %v", seen, want)
	}
}

func TestErasedImageFaults(t *testing.T) {
	m := powered(t)
	if err := m.Program("b", 0xFFFF_FFFF, 0xFFFF_FFFF); err != nil {
		t.Fatal(err)
	}
	if err := m.RequestSwitch("b"); err != nil {
		t.Fatal(err)
	}
	if m.State() != Faulted {
		t.Errorf("state = %s, want faulted", m.State())
	}
	events := m.Events()
	if last := events[len(events)-1]; last.Kind != EventFault || last.Addr != 0xFFFF_FFFF {
		t.Errorf("last event = %s", last)
	}
}

func TestLoadHex(t *testing.T) {
	mem := gohex.NewMemory()
	vectors := []byte{0x00, 0x00, 0x01, 0x20, 0x01, 0x44, 0x02, 0x08}
	if err := mem.AddBinary(originB, vectors); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := mem.DumpIntelHex(&buf, 16); err != nil {
		t.Fatal(err)
	}

	m := New(layout.Default())
	if err := m.LoadHex(&buf); err != nil {
		t.Fatal(err)
	}
	if v, err := m.Peek(originB + 4); err != nil || v != 0x0802_4401 {
		t.Errorf("Peek(entry of b) = 0x%08x, %v", v, err)
	}
	m.PowerOn()
	if err := m.RequestSwitch("b"); err != nil {
		t.Fatal(err)
	}
	if m.SP() != 0x2001_0000 {
		t.Errorf("sp = 0x%08x", m.SP())
	}

	bad := gohex.NewMemory()
	if err := bad.AddBinary(0x2000_0000, vectors); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := bad.DumpIntelHex(&buf, 16); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadHex(&buf); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("LoadHex(RAM data) = %v", err)
	}
}

func TestNotRunning(t *testing.T) {
	m := New(layout.Default())
	if m.State() != Off {
		t.Fatalf("new machine is %s", m.State())
	}
	if err := m.RequestSwitch("b"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("RequestSwitch on an off machine = %v", err)
	}
	if err := m.Poke(0x0800_0000, 1); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Poke(flash) = %v", err)
	}
	if _, err := m.Peek(0x4000_0000); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Peek(peripheral) = %v", err)
	}
}

func TestScript(t *testing.T) {
	script := `
# all-ones RAM boots the default image
power 0xffffffff
expect a
expect-vtor 0x08004000

switch b   # request and reset
expect b
expect-cell 0
press
expect a

# a tag left by a debugger
poke 0x2001_FFF8 0xCAFEBABE
reset
expect b
program a 0xffffffff 0xffffffff
press
expect faulted
`
	m := New(layout.Default())
	if err := m.RunScript(strings.NewReader(script)); err != nil {
		t.Fatal(err)
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		script string
		line   int
		err    error
	}{
		{"power\nexpect b\n", 2, nil},
		{"power\nfly away\n", 2, errUnknownCommand},
		{"power\nswitch\n", 2, errUsage},
		{"switch b\n", 1, ErrNotRunning},
		{"power\nswitch c\n", 2, ErrUnknownImage},
		{"poke 0x2001FFF8 nope\n", 1, nil},
		{"power 'unterminated\n", 1, nil},
	}
	for _, tc := range tests {
		err := New(layout.Default()).RunScript(strings.NewReader(tc.script))
		var serr *ScriptError
		if !errors.As(err, &serr) {
			t.Errorf("%q: error = %v, want a *ScriptError", tc.script, err)
			continue
		}
		if serr.Line != tc.line {
			t.Errorf("%q: failed on line %d, want %d", tc.script, serr.Line, tc.line)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%q: error = %v, want %v", tc.script, err, tc.err)
		}
	}
}
