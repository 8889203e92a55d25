package smoke_test

// End-to-end pass over the host pipeline: a layout file is loaded, targets are
// generated, stand-in program outputs are merged, and the merged flash image
// is booted on the simulator.

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/tinygo-org/dualboot/builder"
	"github.com/tinygo-org/dualboot/layout"
	"github.com/tinygo-org/dualboot/sim"
)

const threeImages = `
chip: stm32f411ceu6
target: blackpill
flash: {origin: 0x08000000, size: 512KB}
ram: {origin: 0x20000000, size: 128KB}
cell: 0x2001FFF8
selector: {origin: 0x08000000, size: 16KB}
images:
  - {name: a, tag: 0xDEADBEEF, origin: 0x08004000, size: 128KB}
  - {name: b, tag: 0xCAFEBABE, origin: 0x08024000, size: 128KB}
  - {name: recovery, tag: 0x5AFE0001, origin: 0x08044000, size: 64KB}
default: recovery
`

// fakeBuild writes what TinyGo would output for each program: a vector table
// at the program's origin, entry at 0x400 into it.
func fakeBuild(t *testing.T, l *layout.Layout, dir string) {
	t.Helper()
	for _, p := range builder.Programs(l) {
		sp := l.RAMLimit() &^ 7
		entry := uint32(p.Region.Origin) + 0x401
		mem := gohex.NewMemory()
		data := []byte{
			byte(sp), byte(sp >> 8), byte(sp >> 16), byte(sp >> 24),
			byte(entry), byte(entry >> 8), byte(entry >> 16), byte(entry >> 24),
		}
		if err := mem.AddBinary(uint32(p.Region.Origin), data); err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if err := builder.WriteHex(&buf, mem); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, p.Name+".hex"), buf.Bytes(), 0o666); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	if err := os.WriteFile(path, []byte(threeImages), 0o666); err != nil {
		t.Fatal(err)
	}
	l, err := layout.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	src, err := builder.GenerateBoard(l)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(src), "TagRecovery handoff.Tag = 0x5afe0001") {
		t.Errorf("board package:\n%s", src)
	}
	if _, err := builder.WriteTargets(l, dir); err != nil {
		t.Fatal(err)
	}
	cmds, err := builder.Plan(l, builder.PlanOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cmds {
		target := ""
		for i, arg := range c.Args[:len(c.Args)-1] {
			if arg == "-target" {
				target = c.Args[i+1]
			}
		}
		if _, err := os.Stat(target); err != nil {
			t.Errorf("%s: target file: %v", c.Program, err)
		}
	}

	fakeBuild(t, l, dir)
	mem, err := builder.Merge(builder.Parts(l, dir, "hex"))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range builder.Inspect(mem, l) {
		if len(r.Problems) != 0 {
			t.Errorf("%s", r)
		}
	}
	var flash bytes.Buffer
	if err := builder.WriteHex(&flash, mem); err != nil {
		t.Fatal(err)
	}

	m := sim.New(l, sim.WithPowerOnWord(0))
	if err := m.LoadHex(&flash); err != nil {
		t.Fatal(err)
	}
	script := `
power
expect recovery
press
expect a
press
expect b
switch recovery
expect recovery
expect-vtor 0x08044000
expect-cell 0
`
	if err := m.RunScript(strings.NewReader(script)); err != nil {
		t.Fatal(err)
	}
}
