//go:build tinygo && cortexm

// Program image is an application image. Every image of a layout is built
// from this program with its own flash origin and parameters: it blinks the
// LED in its pattern and switches to the next image when the button is
// pressed.
package main

import (
	"machine"
	"time"

	"github.com/tinygo-org/dualboot/cortexm"
	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/src/board"
	"github.com/tinygo-org/dualboot/src/image/blink"
	"github.com/tinygo-org/dualboot/switcher"
)

// Set with -ldflags -X from the layout.
var (
	imageName   = "a"
	blinkMillis = "500"
	pattern     = "single"
)

const sampleInterval = 10 * time.Millisecond

func main() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	button.Configure(machine.PinConfig{Mode: buttonMode})

	steps := blink.ParsePattern(pattern)
	step := time.Duration(steps.Step(blinkMillis, 500)) * time.Millisecond
	next := nextImage()
	println("dualboot: image", imageName, "started, blink", blinkMillis, "ms", pattern, "next", next)

	req := switcher.New(handoff.At(board.CellAddress), cortexm.Native{}, board.Table.Entries)
	debounce := blink.Debouncer{Samples: 3}
	for {
		for _, on := range steps {
			led.Set(on)
			for waited := time.Duration(0); waited < step; waited += sampleInterval {
				if debounce.Update(button.Get() == buttonPressed) {
					led.Low()
					println("dualboot: image", imageName, "switching to", next)
					if err := req.RequestImage(next); err != nil {
						println("dualboot: image", imageName, "cannot switch:", err.Error())
					}
				}
				time.Sleep(sampleInterval)
			}
		}
	}
}

// nextImage returns the image after this one in the board table.
func nextImage() string {
	entries := board.Table.Entries
	for i, e := range entries {
		if e.Name == imageName {
			return entries[(i+1)%len(entries)].Name
		}
	}
	return entries[0].Name
}
