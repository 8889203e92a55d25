package builder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/tinygo-org/dualboot/layout"
)

// LinkerScript returns a TinyGo linker script placing the program in its flash
// region. RAM ends at the handoff cell, so no section, heap or stack of the
// program ever covers it and the runtime never clears it.
func LinkerScript(l *layout.Layout, p Program) []byte {
	ramLength := l.RAMLimit() - uint32(l.RAM.Origin)

	var b strings.Builder
	fmt.Fprintf(&b, "/* Code generated by dualboot; DO NOT EDIT. */\n")
	fmt.Fprintf(&b, "/* %s for %s: handoff cell at %s is outside RAM. */\n\n", p.Name, l.Chip, l.Cell)
	fmt.Fprintf(&b, "MEMORY\n{\n")
	fmt.Fprintf(&b, "    FLASH_TEXT (rx) : ORIGIN = %s, LENGTH = 0x%08x\n", p.Region.Origin, uint32(p.Region.Size))
	fmt.Fprintf(&b, "    RAM (xrw)       : ORIGIN = %s, LENGTH = 0x%08x\n", l.RAM.Origin, ramLength)
	fmt.Fprintf(&b, "}\n\n")
	fmt.Fprintf(&b, "_stack_size = 0x%x;\n\n", uint32(l.StackSize))
	fmt.Fprintf(&b, "INCLUDE \"targets/arm.ld\"\n")
	return []byte(b.String())
}

// Target is the subset of a TinyGo target specification that is overridden
// per program.
type Target struct {
	Inherits     []string `json:"inherits"`
	LinkerScript string   `json:"linkerscript"`
}

// TargetJSON returns a TinyGo target file for the program that inherits the
// layout's board target and replaces its linker script.
func TargetJSON(l *layout.Layout, ldscript string) ([]byte, error) {
	if l.Target == "" {
		return nil, errNoTarget
	}
	data, err := json.MarshalIndent(Target{
		Inherits:     []string{l.Target},
		LinkerScript: ldscript,
	}, "", "\t")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Paths of the generated files of a program inside an output directory.
func scriptPath(dir string, p Program) string { return filepath.Join(dir, p.Name+".ld") }
func targetPath(dir string, p Program) string { return filepath.Join(dir, p.Name+".json") }

// WriteTargets writes a linker script and a target file for every program of
// the layout into dir. The directory is locked for the duration.
func WriteTargets(l *layout.Layout, dir string) ([]string, error) {
	var written []string
	err := withLock(dir, func() error {
		for _, p := range Programs(l) {
			ldscript, err := filepath.Abs(scriptPath(dir, p))
			if err != nil {
				return err
			}
			target, err := TargetJSON(l, ldscript)
			if err != nil {
				return err
			}
			if err := os.WriteFile(ldscript, LinkerScript(l, p), 0o666); err != nil {
				return err
			}
			if err := os.WriteFile(targetPath(dir, p), target, 0o666); err != nil {
				return err
			}
			written = append(written, scriptPath(dir, p), targetPath(dir, p))
		}
		return nil
	})
	return written, err
}

// withLock runs fn while holding an exclusive lock on dir, so two builds
// sharing an output directory do not interleave their files.
func withLock(dir string, fn func() error) error {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	lock := flock.New(filepath.Join(dir, ".dualboot.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", dir, err)
	}
	defer lock.Unlock()
	return fn()
}
