package builder

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"text/template"

	"github.com/tinygo-org/dualboot/layout"
)

// BoardPackage is the generated package shared by the selector and the images.
const BoardPackage = "./src/board"

var boardTemplate = template.Must(template.New("board").Funcs(template.FuncMap{
	"export": layout.ExportName,
}).Parse(`// Code generated by dualboot; DO NOT EDIT.

// Package board holds the memory layout of {{.Chip}} as seen by the boot
// selector and the images.
package board

import (
	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/selector"
)

// CellAddress is the address of the handoff cell.
const CellAddress uintptr = {{.Cell}}

const (
{{- range .Images}}
	Tag{{export .Name}} handoff.Tag = {{.Tag}}
{{- end}}
)

const (
{{- range .Images}}
	Origin{{export .Name}} uint32 = {{.Origin}}
{{- end}}
)

// Table is the boot selector table.
var Table = selector.Table{
	Entries: []selector.Entry{
{{- range .Images}}
		{Name: {{printf "%q" .Name}}, Tag: Tag{{export .Name}}, Base: Origin{{export .Name}}},
{{- end}}
	},
	Default: Origin{{export .Default}},
	Policy:  selector.{{if eq .Fallback "halt"}}FallbackHalt{{else}}FallbackDefault{{end}},
}
`))

// GenerateBoard returns the gofmt-formatted source of the board package for
// the layout.
func GenerateBoard(l *layout.Layout) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, l); err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}

// WriteBoard regenerates the board package below the module root.
func WriteBoard(l *layout.Layout, root string) (string, error) {
	src, err := GenerateBoard(l)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, BoardPackage, "layout_gen.go")
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, src, 0o666)
}
