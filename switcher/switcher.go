// Package switcher is linked into every image. It is the only way for an image
// to leave itself: store the tag of the next image in the handoff cell and
// reset the core, so the boot selector starts that image.
package switcher

import (
	"errors"

	"github.com/tinygo-org/dualboot/cortexm"
	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/selector"
)

var ErrUnknownImage = errors.New("switcher: unknown image")

// Requester requests switches to other images.
type Requester struct {
	cell   *handoff.Cell
	core   cortexm.Core
	images []selector.Entry
}

// New returns a requester using the given cell and core. The images table is
// only needed by RequestImage.
func New(cell *handoff.Cell, core cortexm.Core, images []selector.Entry) *Requester {
	return &Requester{
		cell:   cell,
		core:   core,
		images: images,
	}
}

// RequestSwitch makes the selector boot the image identified by tag after a
// system reset, and triggers that reset. It does not return. If the reset
// does not take effect the core spins here instead of resuming the caller.
func (r *Requester) RequestSwitch(tag handoff.Tag) {
	r.cell.Write(tag)

	// The tag must be in RAM before the reset request can be issued.
	r.core.DataSyncBarrier()

	r.core.RequestReset()
	r.core.DataSyncBarrier()

	for {
		r.core.Idle()
	}
}

// RequestImage is RequestSwitch by image name. It only returns, with
// ErrUnknownImage, when the name is not in the table; the cell is not touched
// in that case.
func (r *Requester) RequestImage(name string) error {
	for _, e := range r.images {
		if e.Name == name {
			r.RequestSwitch(e.Tag)
		}
	}
	return ErrUnknownImage
}
