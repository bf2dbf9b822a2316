// Package mmio provides single-word access to memory-mapped peripheral
// registers.
//
// A Bus is addressed by byte offset from the peripheral's base address. Every
// accessor on Register performs exactly one load and at most one store;
// nothing is cached between calls since register contents reflect live
// hardware state and stores may have side effects beyond storage.
package mmio

// Bus is a block of 32-bit registers addressed by byte offset.
type Bus interface {
	Load(offset uintptr) uint32
	Store(offset uintptr, value uint32)
}

// Register is a single 32-bit register on a Bus.
type Register struct {
	bus    Bus
	offset uintptr
}

// Reg returns the register at offset on bus.
func Reg(bus Bus, offset uintptr) Register {
	return Register{bus: bus, offset: offset}
}

// Get reads the full register.
func (r Register) Get() uint32 {
	return r.bus.Load(r.offset)
}

// Set writes the full register.
func (r Register) Set(value uint32) {
	r.bus.Store(r.offset, value)
}

// HasBits reports whether every bit in mask is set.
func (r Register) HasBits(mask uint32) bool {
	return r.bus.Load(r.offset)&mask == mask
}

// SetBits sets the bits in mask with a read-modify-write.
func (r Register) SetBits(mask uint32) {
	r.bus.Store(r.offset, r.bus.Load(r.offset)|mask)
}

// ClearBits clears the bits in mask with a read-modify-write.
func (r Register) ClearBits(mask uint32) {
	r.bus.Store(r.offset, r.bus.Load(r.offset)&^mask)
}

// ReplaceBits sets the bits in mask if on is true and clears them otherwise.
func (r Register) ReplaceBits(mask uint32, on bool) {
	if on {
		r.SetBits(mask)
	} else {
		r.ClearBits(mask)
	}
}

// Field extracts the field of width mask located at shift.
func (r Register) Field(shift uint, mask uint32) uint32 {
	return (r.bus.Load(r.offset) >> shift) & mask
}

// SetField replaces the field of width mask located at shift with value.
// Bits of value outside mask are discarded.
func (r Register) SetField(shift uint, mask uint32, value uint32) {
	v := r.bus.Load(r.offset)
	v = (v &^ (mask << shift)) | ((value & mask) << shift)
	r.bus.Store(r.offset, v)
}

// Bit returns a mask with only bit n set.
func Bit(n uint) uint32 {
	return 1 << n
}

// Mask returns a right-aligned mask of width bits.
func Mask(width uint) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return (1 << width) - 1
}
