//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Mapped is a Bus backed by physical memory starting at the given base
// address.
type Mapped uintptr

// Map returns the Bus for the register block at base.
func Map(base uintptr) Mapped {
	return Mapped(base)
}

func (m Mapped) Load(offset uintptr) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(m) + offset)))
}

func (m Mapped) Store(offset uintptr, value uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(m)+offset)), value)
}
