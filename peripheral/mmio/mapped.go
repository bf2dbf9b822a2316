//go:build !tinygo

package mmio

import (
	"sync/atomic"
	"unsafe"
)

// Mapped is a Bus backed by physical memory starting at the given base
// address. It is only meaningful on targets where the peripheral is mapped
// into the address space of the running program.
type Mapped uintptr

// Map returns the Bus for the register block at base.
func Map(base uintptr) Mapped {
	return Mapped(base)
}

func (m Mapped) Load(offset uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(m) + offset)))
}

func (m Mapped) Store(offset uintptr, value uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(uintptr(m)+offset)), value)
}
