// Package diagnostics formats layout, build and script errors and prints them in a
// consistent way.
package diagnostics

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tinygo-org/dualboot/builder"
	"github.com/tinygo-org/dualboot/layout"
	"github.com/tinygo-org/dualboot/sim"
)

// A single diagnostic.
type Diagnostic struct {
	Pos token.Position

	// Field is the layout field the problem was found in, if known. YAML
	// decoding errors only carry a line number instead.
	Field string

	Msg string
}

// One or multiple errors of a single input: a layout file, or a program of
// the build plan.
type FileDiagnostic struct {
	Source      string
	Diagnostics []Diagnostic
}

// Diagnostics of a whole command invocation.
type ProgramDiagnostic []FileDiagnostic

// CreateDiagnostics reads the underlying errors in the error object and creates
// a set of diagnostics that's sorted and can be readily printed.
func CreateDiagnostics(err error) ProgramDiagnostic {
	if err == nil {
		return nil
	}
	var multi *builder.MultiError
	if errors.As(err, &multi) {
		var progDiag ProgramDiagnostic
		for _, err := range multi.Errs {
			progDiag = append(progDiag, createFileDiagnostic(err))
		}
		return progDiag
	}
	return ProgramDiagnostic{
		createFileDiagnostic(err),
	}
}

// Create diagnostics for a single input.
func createFileDiagnostic(err error) FileDiagnostic {
	var fileDiag FileDiagnostic
	var (
		layoutErrs layout.Errors
		parseErr   *layout.ParseError
		buildErr   *builder.ProgramError
		scriptErr  *sim.ScriptError
	)
	switch {
	case errors.As(err, &layoutErrs):
		fileDiag.Source = layoutErrs.Source
		for _, err := range layoutErrs.Errs {
			fileDiag.Diagnostics = append(fileDiag.Diagnostics, createDiagnostic(layoutErrs.Source, err))
		}
	case errors.As(err, &parseErr):
		fileDiag.Source = parseErr.Source
		for _, line := range parseErr.Lines() {
			fileDiag.Diagnostics = append(fileDiag.Diagnostics, parseLine(parseErr.Source, line))
		}
	case errors.As(err, &buildErr):
		fileDiag.Source = buildErr.Program
		msg := buildErr.Err.Error()
		if len(buildErr.Output) != 0 {
			msg += "\n" + strings.TrimRight(string(buildErr.Output), "\n")
		}
		fileDiag.Diagnostics = append(fileDiag.Diagnostics, Diagnostic{Msg: msg})
	case errors.As(err, &scriptErr):
		fileDiag.Source = scriptErr.Source
		fileDiag.Diagnostics = append(fileDiag.Diagnostics, Diagnostic{
			Pos: token.Position{Filename: scriptErr.Source, Line: scriptErr.Line},
			Msg: scriptErr.Text + ": " + scriptErr.Err.Error(),
		})
	default:
		fileDiag.Diagnostics = []Diagnostic{{Msg: err.Error()}}
	}

	// Sort these diagnostics by line, then field.
	sort.SliceStable(fileDiag.Diagnostics, func(i, j int) bool {
		di := fileDiag.Diagnostics[i]
		dj := fileDiag.Diagnostics[j]
		if di.Pos.Line != dj.Pos.Line {
			return di.Pos.Line < dj.Pos.Line
		}
		return di.Field < dj.Field
	})

	return fileDiag
}

func createDiagnostic(source string, err error) Diagnostic {
	var le *layout.Error
	if errors.As(err, &le) {
		return Diagnostic{
			Pos:   token.Position{Filename: source},
			Field: le.Field,
			Msg:   le.Msg,
		}
	}
	return Diagnostic{Pos: token.Position{Filename: source}, Msg: err.Error()}
}

// parseLine turns a YAML decoder message of the form "line N: msg" into a
// positioned diagnostic.
func parseLine(source, line string) Diagnostic {
	diag := Diagnostic{
		Pos: token.Position{Filename: source},
		Msg: line,
	}
	rest, ok := strings.CutPrefix(line, "line ")
	if !ok {
		return diag
	}
	num, msg, ok := strings.Cut(rest, ": ")
	if !ok {
		return diag
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return diag
	}
	diag.Pos.Line = n
	diag.Msg = msg
	return diag
}

// Write program diagnostics to the given writer with 'wd' as the relative
// working directory.
func (progDiag ProgramDiagnostic) WriteTo(w io.Writer, wd string) {
	for _, fileDiag := range progDiag {
		fileDiag.WriteTo(w, wd)
	}
}

// Write file diagnostics to the given writer with 'wd' as the relative
// working directory.
func (fileDiag FileDiagnostic) WriteTo(w io.Writer, wd string) {
	if fileDiag.Source != "" {
		fmt.Fprintln(w, "#", RelativePath(fileDiag.Source, wd))
	}
	for _, diag := range fileDiag.Diagnostics {
		diag.WriteTo(w, wd)
	}
}

// Write this diagnostic to the given writer with 'wd' as the relative working
// directory.
func (diag Diagnostic) WriteTo(w io.Writer, wd string) {
	msg := diag.Msg
	if diag.Field != "" {
		msg = diag.Field + ": " + msg
	}
	if diag.Pos.Filename == "" {
		fmt.Fprintln(w, msg)
		return
	}
	pos := diag.Pos
	pos.Filename = RelativePath(pos.Filename, wd)
	fmt.Fprintf(w, "%s: %s\n", pos, msg)
}

// RelativePath converts path into a path relative to wd if possible, for
// easier reading. Any error falls back to the path as given.
func RelativePath(path, wd string) string {
	if wd == "" || !filepath.IsAbs(path) {
		return path
	}
	relpath, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return relpath
}
