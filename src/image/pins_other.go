//go:build tinygo && cortexm && !stm32

package main

import "machine"

const (
	button        = machine.BUTTON
	buttonMode    = machine.PinInputPullup
	buttonPressed = false
)
