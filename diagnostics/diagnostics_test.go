package diagnostics

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinygo-org/dualboot/builder"
	"github.com/tinygo-org/dualboot/layout"
	"github.com/tinygo-org/dualboot/sim"
)

func TestLayoutErrors(t *testing.T) {
	wd := filepath.FromSlash("/work")
	l := layout.Default()
	l.Source = filepath.Join(wd, "boards", "pill.yaml")
	l.Default = "c"
	l.Images[1].Origin = 0x0802_4100

	diags := CreateDiagnostics(l.Validate())
	if len(diags) != 1 || len(diags[0].Diagnostics) != 2 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	// Sorted by field.
	if diags[0].Diagnostics[0].Field != "default" || diags[0].Diagnostics[1].Field != "images[1].origin" {
		t.Errorf("fields = %q, %q", diags[0].Diagnostics[0].Field, diags[0].Diagnostics[1].Field)
	}

	var buf bytes.Buffer
	diags.WriteTo(&buf, wd)
	name := filepath.Join("boards", "pill.yaml")
	want := "# " + name + "\n" +
		name + `: default: no image named "c"` + "\n"
	if !strings.HasPrefix(buf.String(), want) {
		t.Errorf("output:\n%s\nwant prefix:\n%s", buf.String(), want)
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := layout.Parse([]byte("chip: x\nbogus: 1\n"), "pill.yaml")
	diags := CreateDiagnostics(err)
	if len(diags) != 1 || len(diags[0].Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags[0].Diagnostics[0]
	if d.Pos.Line != 2 || !strings.Contains(d.Msg, "bogus") || strings.HasPrefix(d.Msg, "line") {
		t.Errorf("diagnostic = %+v", d)
	}
}

func TestBuildErrors(t *testing.T) {
	err := &builder.MultiError{Errs: []error{
		&builder.ProgramError{Program: "a", Err: errors.New("exit status 1"), Output: []byte("main.go:3: undefined: x\n")},
		errors.New("context canceled"),
	}}
	var buf bytes.Buffer
	CreateDiagnostics(err).WriteTo(&buf, "")
	want := "# a\nexit status 1\nmain.go:3: undefined: x\ncontext canceled\n"
	if buf.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestScriptError(t *testing.T) {
	err := &sim.ScriptError{Source: "boot.sim", Line: 7, Text: "expect b", Err: errors.New("machine is running a")}
	var buf bytes.Buffer
	CreateDiagnostics(err).WriteTo(&buf, "")
	want := "# boot.sim\nboot.sim:7: expect b: machine is running a\n"
	if buf.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestNoError(t *testing.T) {
	if diags := CreateDiagnostics(nil); diags != nil {
		t.Errorf("CreateDiagnostics(nil) = %v", diags)
	}
}
