package sim

import "fmt"

// EventKind classifies a trace event.
type EventKind string

const (
	EventPowerOn      EventKind = "power-on"
	EventReset        EventKind = "reset"
	EventCell         EventKind = "cell"
	EventDSB          EventKind = "dsb"
	EventISB          EventKind = "isb"
	EventQuiesce      EventKind = "quiesce"
	EventVTOR         EventKind = "vtor"
	EventResetRequest EventKind = "reset-request"
	EventJump         EventKind = "jump"
	EventSelect       EventKind = "select"
	EventFallback     EventKind = "fallback"
	EventHalt         EventKind = "halt"
	EventHang         EventKind = "hang"
	EventFault        EventKind = "fault"
)

// Event is one observable step of the machine.
type Event struct {
	Kind  EventKind
	Image string // image involved, if any
	Addr  uint32
	Value uint32
}

func (e Event) String() string {
	switch e.Kind {
	case EventCell:
		return fmt.Sprintf("cell <- 0x%08x", e.Value)
	case EventVTOR:
		return fmt.Sprintf("vtor <- 0x%08x", e.Addr)
	case EventJump:
		return fmt.Sprintf("jump sp=0x%08x entry=0x%08x", e.Value, e.Addr)
	case EventSelect, EventFallback:
		return fmt.Sprintf("%s %s at 0x%08x (tag 0x%08x)", e.Kind, e.Image, e.Addr, e.Value)
	case EventHalt:
		return fmt.Sprintf("halt (tag 0x%08x)", e.Value)
	case EventFault:
		return fmt.Sprintf("fault at 0x%08x", e.Addr)
	case EventResetRequest, EventHang:
		if e.Image != "" {
			return string(e.Kind) + " in " + e.Image
		}
	}
	return string(e.Kind)
}
