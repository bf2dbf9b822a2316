package can

import (
	"omibyte.io/bxcan/peripheral"
	"omibyte.io/bxcan/peripheral/can/internal/regs"
)

// Event is a set of interrupt sources in the interrupt enable register.
type Event uint32

const (
	EventTransmitEmpty = Event(regs.TMEIE)
	EventFIFO0Pending  = Event(regs.FMPIE0)
	EventFIFO0Full     = Event(regs.FFIE0)
	EventFIFO0Overrun  = Event(regs.FOVIE0)
	EventFIFO1Pending  = Event(regs.FMPIE1)
	EventFIFO1Full     = Event(regs.FFIE1)
	EventFIFO1Overrun  = Event(regs.FOVIE1)
	EventErrorWarning  = Event(regs.EWGIE)
	EventErrorPassive  = Event(regs.EPVIE)
	EventBusOff        = Event(regs.BOFIE)
	EventLastErrorCode = Event(regs.LECIE)
	EventError         = Event(regs.ERRIE)
	EventWakeup        = Event(regs.WKUIE)
	EventSleepAck      = Event(regs.SLKIE)
)

// Line is an interrupt controller line with the priority it should run at.
type Line struct {
	Interrupt   peripheral.Interrupt
	Priority    uint8
	SubPriority uint8
}

// EnableInterrupts replaces the enabled interrupt sources with events, then
// sets the priority of each line and enables it.
func (c *CAN) EnableInterrupts(events Event, lines ...Line) {
	c.regs.ier.Set(uint32(events))
	for _, l := range lines {
		if l.Interrupt == nil {
			continue
		}
		l.Interrupt.SetPriority(l.Priority, l.SubPriority)
		l.Interrupt.EnableIRQ()
	}
}

// DisableInterrupts clears every interrupt source and disables lines.
func (c *CAN) DisableInterrupts(lines ...peripheral.Interrupt) {
	c.regs.ier.Set(0)
	for _, l := range lines {
		if l != nil {
			l.DisableIRQ()
		}
	}
}

// EnabledInterrupts returns the enabled interrupt sources.
func (c *CAN) EnabledInterrupts() Event {
	return Event(c.regs.ier.Get())
}
