// Package builder turns a layout into the files and commands needed to build
// the boot selector and every image with TinyGo, and into a single flash image
// once they are built.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tinygo-org/dualboot/layout"
)

// Packages built for each kind of program, relative to the module root.
const (
	SelectorPackage = "./src/bootsel"
	ImagePackage    = "./src/image"
)

// SelectorName is the program name of the boot selector. Image programs are
// named after their image.
const SelectorName = "bootsel"

// Program is one firmware program of a layout.
type Program struct {
	Name    string
	Package string
	Region  layout.Region

	// BuildFlags go to tinygo build ahead of the target, after any extra
	// arguments, so they take precedence.
	BuildFlags []string

	// ldflags returns the -X flags passing build-time parameters to the
	// program's main package.
	ldflags func() ([]string, error)
}

// LDFlags returns the linker flags for the program.
func (p Program) LDFlags() ([]string, error) {
	if p.ldflags == nil {
		return nil, nil
	}
	return p.ldflags()
}

// SelectorBuildFlags are always passed when building the selector. Without a
// scheduler main runs on the main stack, which is the stack Jump replaces; with
// one it would run on the process stack and hand it to the image.
var SelectorBuildFlags = []string{"-scheduler=none"}

// Programs returns the selector followed by one program per image.
func Programs(l *layout.Layout) []Program {
	programs := []Program{{
		Name:       SelectorName,
		Package:    SelectorPackage,
		Region:     l.Selector,
		BuildFlags: SelectorBuildFlags,
	}}
	for _, img := range l.Images {
		img := img
		programs = append(programs, Program{
			Name:    img.Name,
			Package: ImagePackage,
			Region:  img.Region(),
			ldflags: func() ([]string, error) {
				return imageFlags(img)
			},
		})
	}
	return programs
}

// imageFlags passes the image name and every parameter as main.<key> string
// variables. Values are not quoted, so they may not contain whitespace.
func imageFlags(img layout.Image) ([]string, error) {
	flags := []string{"-X", "main.imageName=" + img.Name}
	keys := make([]string, 0, len(img.Params))
	for key := range img.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := img.Params[key]
		if strings.ContainsAny(key+value, " \t\n'\"") {
			return nil, fmt.Errorf("image %s: parameter %s=%q cannot be passed as a linker flag", img.Name, key, value)
		}
		flags = append(flags, "-X", "main."+key+"="+value)
	}
	return flags, nil
}
