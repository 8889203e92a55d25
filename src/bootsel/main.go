//go:build tinygo && cortexm

// Program bootsel is the boot selector. It is linked at the start of flash,
// runs after every reset and starts the image requested in the handoff cell.
package main

import (
	"github.com/tinygo-org/dualboot/cortexm"
	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/selector"
	"github.com/tinygo-org/dualboot/src/board"
)

func main() {
	selector.New(board.Table, cortexm.Native{}, handoff.At(board.CellAddress)).Boot()
}
