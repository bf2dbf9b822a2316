// Package nvic drives the Cortex-M nested vectored interrupt controller.
package nvic

import (
	"omibyte.io/bxcan/peripheral"
	"omibyte.io/bxcan/peripheral/mmio"
)

const (
	// Base is the address of the NVIC register block on every Cortex-M core.
	Base uintptr = 0xE000E100

	// Lines is the number of interrupt lines addressable through ISER/ICER
	// and IPR.
	Lines = 496

	offsetISER uintptr = 0x000
	offsetICER uintptr = 0x080
	offsetIPR  uintptr = 0x300
)

// NVIC is an interrupt controller register block.
type NVIC struct {
	bus mmio.Bus
}

// New returns the controller at the architectural base address.
func New() *NVIC {
	return &NVIC{bus: mmio.Map(Base)}
}

// NewWithBus returns the controller backed by bus.
func NewWithBus(bus mmio.Bus) *NVIC {
	return &NVIC{bus: bus}
}

// Line returns the interrupt line irq.
func (n *NVIC) Line(irq uint16) Line {
	return Line{nvic: n, irq: irq}
}

// Line is one interrupt line. Operations on lines at or beyond Lines are
// ignored.
type Line struct {
	nvic *NVIC
	irq  uint16
}

var _ peripheral.Interrupt = Line{}

// IRQ returns the line number.
func (l Line) IRQ() uint16 {
	return l.irq
}

func (l Line) EnableIRQ() {
	if l.irq >= Lines {
		return
	}
	// ISER is write-one-to-set; other lines are untouched by zero bits.
	l.nvic.bus.Store(offsetISER+uintptr(l.irq>>5)*4, mmio.Bit(uint(l.irq&0x1F)))
}

func (l Line) DisableIRQ() {
	if l.irq >= Lines {
		return
	}
	l.nvic.bus.Store(offsetICER+uintptr(l.irq>>5)*4, mmio.Bit(uint(l.irq&0x1F)))
}

// SetPriority programs the line's priority byte. Only the upper four bits are
// implemented: two bits of group priority followed by two of sub-priority.
func (l Line) SetPriority(priority uint8, subPriority uint8) {
	if l.irq >= Lines {
		return
	}
	reg := mmio.Reg(l.nvic.bus, offsetIPR+uintptr(l.irq/4)*4)
	reg.SetField(uint(l.irq%4)*8, mmio.Mask(8), uint32(EncodePriority(priority, subPriority)))
}

// EncodePriority packs a priority and sub-priority into an IPR byte.
func EncodePriority(priority uint8, subPriority uint8) uint8 {
	return priority<<6 | (subPriority&0x3)<<4
}
