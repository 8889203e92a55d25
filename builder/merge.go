package builder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inhies/go-bytesize"
	"github.com/marcinbor85/gohex"
	"github.com/sigurn/crc16"
	"github.com/tinygo-org/dualboot/layout"
	"github.com/tinygo-org/dualboot/selector"
)

// Part is one built program to be placed in the merged flash image.
type Part struct {
	Name   string
	Path   string
	Region layout.Region
}

// Parts returns the expected build outputs of every program in dir.
func Parts(l *layout.Layout, dir, format string) []Part {
	var parts []Part
	for _, p := range Programs(l) {
		parts = append(parts, Part{
			Name:   p.Name,
			Path:   filepath.Join(dir, p.Name+"."+format),
			Region: p.Region,
		})
	}
	return parts
}

// Merge combines the parts into one memory image. Intel HEX inputs are placed
// at the addresses they carry, raw binaries at the origin of their region.
// Data outside a part's region is rejected with a *SegmentError.
func Merge(parts []Part) (*gohex.Memory, error) {
	merged := gohex.NewMemory()
	for _, part := range parts {
		mem, err := readPart(part)
		if err != nil {
			return nil, err
		}
		for _, seg := range mem.GetDataSegments() {
			end := uint64(seg.Address) + uint64(len(seg.Data))
			if !part.Region.Contains(seg.Address) || end > part.Region.End() {
				return nil, &SegmentError{
					Part:    part.Name,
					Address: seg.Address,
					Size:    len(seg.Data),
					Region:  part.Region,
				}
			}
			if err := merged.AddBinary(seg.Address, seg.Data); err != nil {
				return nil, fmt.Errorf("%s: %w", part.Name, err)
			}
		}
	}
	return merged, nil
}

func readPart(part Part) (*gohex.Memory, error) {
	data, err := os.ReadFile(part.Path)
	if err != nil {
		return nil, err
	}
	mem := gohex.NewMemory()
	switch strings.ToLower(filepath.Ext(part.Path)) {
	case ".hex", ".ihex":
		if err := mem.ParseIntelHex(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%s: %w", part.Path, err)
		}
	case ".bin":
		if err := mem.AddBinary(uint32(part.Region.Origin), data); err != nil {
			return nil, fmt.Errorf("%s: %w", part.Path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", part.Path, errUnknownPart)
	}
	return mem, nil
}

// WriteHex writes the memory image as Intel HEX with 16 bytes per record.
func WriteHex(w io.Writer, mem *gohex.Memory) error {
	return mem.DumpIntelHex(w, 16)
}

// ReadHex parses an Intel HEX image.
func ReadHex(r io.Reader) (*gohex.Memory, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, err
	}
	return mem, nil
}

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Report describes one program region of a flash image.
type Report struct {
	Name     string
	Region   layout.Region
	Used     uint32 // bytes of data inside the region
	Vectors  selector.Vectors
	CRC      uint16 // CRC-16/CCITT-FALSE over the region, erased bytes as 0xff
	Problems []string
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %s used %-9s", r.Name, r.Region.Origin, bytesize.New(float64(r.Used)))
	if r.Used != 0 {
		fmt.Fprintf(&b, " sp 0x%08x entry 0x%08x crc %04x", r.Vectors.StackPointer, r.Vectors.Entry, r.CRC)
	}
	for _, p := range r.Problems {
		fmt.Fprintf(&b, "\n         %s", p)
	}
	return b.String()
}

// Inspect reports the vector table and contents of every program region of
// the layout in mem. The checks are for build time only: the selector trusts
// whatever is flashed.
func Inspect(mem *gohex.Memory, l *layout.Layout) []Report {
	var reports []Report
	for _, p := range Programs(l) {
		r := Report{Name: p.Name, Region: p.Region}
		for _, seg := range mem.GetDataSegments() {
			r.Used += overlap(p.Region, seg.Address, len(seg.Data))
		}
		if r.Used == 0 {
			r.Problems = append(r.Problems, "region is empty")
			reports = append(reports, r)
			continue
		}

		data := mem.ToBinary(uint32(p.Region.Origin), uint32(p.Region.Size), 0xff)
		r.CRC = crc16.Checksum(data, crcTable)
		r.Vectors = selector.Vectors{
			StackPointer: le32(data[0:4]),
			Entry:        le32(data[4:8]),
		}
		r.Problems = vectorProblems(l, p.Region, r.Vectors)
		reports = append(reports, r)
	}
	return reports
}

// vectorProblems checks the two vector table words the selector consumes.
func vectorProblems(l *layout.Layout, region layout.Region, v selector.Vectors) []string {
	var problems []string
	sp := v.StackPointer
	switch {
	case sp <= uint32(l.RAM.Origin) || sp > l.RAMLimit():
		problems = append(problems, fmt.Sprintf("stack pointer 0x%08x is outside RAM below the handoff cell (0x%08x..0x%08x]", sp, uint32(l.RAM.Origin), l.RAMLimit()))
	case sp%8 != 0:
		problems = append(problems, fmt.Sprintf("stack pointer 0x%08x is not 8-byte aligned", sp))
	}
	if v.Entry&1 == 0 {
		problems = append(problems, fmt.Sprintf("entry 0x%08x is not a Thumb address", v.Entry))
	}
	if !region.Contains(v.Entry &^ 1) {
		problems = append(problems, fmt.Sprintf("entry 0x%08x is outside the region, the image was linked for another origin", v.Entry))
	}
	return problems
}

func overlap(r layout.Region, addr uint32, n int) uint32 {
	start := uint64(addr)
	end := start + uint64(n)
	if s := uint64(r.Origin); start < s {
		start = s
	}
	if e := r.End(); end > e {
		end = e
	}
	if end <= start {
		return 0
	}
	return uint32(end - start)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
