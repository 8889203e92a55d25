// Package layout describes the memory contract shared by the boot selector and
// every image: where flash and RAM are, where the handoff cell lives, which
// tag selects which image, and what to boot when the tag is not recognized.
//
// Both the selector's table and each image's linker script are generated from
// one Layout, so a mismatch between them cannot be introduced by hand.
package layout

import (
	"fmt"
	"unicode"

	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/selector"
)

// Region is a contiguous range of memory.
type Region struct {
	Origin Addr `yaml:"origin"`
	Size   Size `yaml:"size"`
}

// End returns the first address after the region.
func (r Region) End() uint64 {
	return uint64(r.Origin) + uint64(r.Size)
}

// Contains reports whether addr is inside the region.
func (r Region) Contains(addr uint32) bool {
	return uint64(addr) >= uint64(r.Origin) && uint64(addr) < r.End()
}

// Within reports whether r lies entirely inside outer.
func (r Region) Within(outer Region) bool {
	return r.Origin >= outer.Origin && r.End() <= outer.End()
}

// Overlaps reports whether r and o share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return uint64(r.Origin) < o.End() && uint64(o.Origin) < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("%s..0x%08x (%s)", r.Origin, r.End(), r.Size)
}

// Image is one application image.
type Image struct {
	Name   string            `yaml:"name"`
	Tag    Word              `yaml:"tag"`
	Origin Addr              `yaml:"origin"`
	Size   Size              `yaml:"size"`
	Params map[string]string `yaml:"params,omitempty"`
}

// Region returns the flash region of the image.
func (img Image) Region() Region {
	return Region{Origin: img.Origin, Size: img.Size}
}

// Ident returns the image name as an exported Go identifier suffix, as used
// in the generated board package: "recovery" becomes "Recovery".
func (img Image) Ident() string {
	return ExportName(img.Name)
}

// ExportName upper-cases the first letter of name.
func ExportName(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// HandoffTag returns the image tag as stored in the handoff cell.
func (img Image) HandoffTag() handoff.Tag {
	return handoff.Tag(img.Tag)
}

// Fallback names the selector policy for unknown tags.
type Fallback string

const (
	FallbackDefault Fallback = "default"
	FallbackHalt    Fallback = "halt"
)

// Layout is the complete memory contract of one board.
type Layout struct {
	Chip        string   `yaml:"chip"`
	Target      string   `yaml:"target"` // TinyGo target the generated targets inherit
	Flash       Region   `yaml:"flash"`
	RAM         Region   `yaml:"ram"`
	Cell        Addr     `yaml:"cell"`
	VectorAlign Size     `yaml:"vector_align"`
	StackSize   Size     `yaml:"stack_size"`
	Selector    Region   `yaml:"selector"`
	Images      []Image  `yaml:"images"`
	Default     string   `yaml:"default"`
	Fallback    Fallback `yaml:"fallback"`

	// Source is the file the layout was read from, if any.
	Source string `yaml:"-"`
}

// Default returns the layout of the STM32F411CEU6 "black pill" board: a 16KB
// selector followed by two 128KB images, with the handoff cell in the last
// eight bytes of the 128KB SRAM.
func Default() *Layout {
	return &Layout{
		Chip:        "stm32f411ceu6",
		Target:      "blackpill",
		Flash:       Region{Origin: 0x0800_0000, Size: 512 * 1024},
		RAM:         Region{Origin: 0x2000_0000, Size: 128 * 1024},
		Cell:        0x2001_FFF8,
		VectorAlign: 512,
		StackSize:   4 * 1024,
		Selector:    Region{Origin: 0x0800_0000, Size: 16 * 1024},
		Images: []Image{
			{
				Name:   "a",
				Tag:    Word(handoff.TagImageA),
				Origin: 0x0800_4000,
				Size:   128 * 1024,
				Params: map[string]string{"blinkMillis": "2000", "pattern": "double"},
			},
			{
				Name:   "b",
				Tag:    Word(handoff.TagImageB),
				Origin: 0x0802_4000,
				Size:   128 * 1024,
				Params: map[string]string{"blinkMillis": "50", "pattern": "single"},
			},
		},
		Default:  "a",
		Fallback: FallbackDefault,
	}
}

// setDefaults fills in optional fields.
func (l *Layout) setDefaults() {
	if l.VectorAlign == 0 {
		l.VectorAlign = 512
	}
	if l.StackSize == 0 {
		l.StackSize = 4 * 1024
	}
	if l.Fallback == "" {
		l.Fallback = FallbackDefault
	}
	if l.Default == "" && len(l.Images) != 0 {
		l.Default = l.Images[0].Name
	}
}

// Lookup returns the image with the given name.
func (l *Layout) Lookup(name string) (Image, bool) {
	for _, img := range l.Images {
		if img.Name == name {
			return img, true
		}
	}
	return Image{}, false
}

// ImageAt returns the image whose flash region contains addr.
func (l *Layout) ImageAt(addr uint32) (Image, bool) {
	for _, img := range l.Images {
		if img.Region().Contains(addr) {
			return img, true
		}
	}
	return Image{}, false
}

// Next returns the image after name, wrapping around. With two images this
// is simply "the other one".
func (l *Layout) Next(name string) (Image, bool) {
	for i, img := range l.Images {
		if img.Name == name {
			return l.Images[(i+1)%len(l.Images)], true
		}
	}
	return Image{}, false
}

// RAMLimit is the first address programs may not use: everything from the
// cell to the end of RAM is reserved and never initialized.
func (l *Layout) RAMLimit() uint32 {
	return uint32(l.Cell)
}

// Table returns the selector table for this layout. The layout should have
// been validated first.
func (l *Layout) Table() selector.Table {
	t := selector.Table{
		Entries: make([]selector.Entry, 0, len(l.Images)),
		Policy:  selector.FallbackDefault,
	}
	if l.Fallback == FallbackHalt {
		t.Policy = selector.FallbackHalt
	}
	for _, img := range l.Images {
		t.Entries = append(t.Entries, selector.Entry{
			Name: img.Name,
			Tag:  img.HandoffTag(),
			Base: uint32(img.Origin),
		})
		if img.Name == l.Default {
			t.Default = uint32(img.Origin)
		}
	}
	return t
}
