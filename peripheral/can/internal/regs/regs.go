// Package regs holds the register layout of the bxCAN controller shared by
// the driver and the hardware model.
package regs

const (
	NumMailboxes = 3
	NumFIFOs     = 2
	NumFilters   = 14
	FIFODepth    = 3
)

// Register offsets from the controller base address.
const (
	MCR  uintptr = 0x000
	MSR  uintptr = 0x004
	TSR  uintptr = 0x008
	RF0R uintptr = 0x00C
	RF1R uintptr = 0x010
	IER  uintptr = 0x014
	ESR  uintptr = 0x018
	BTR  uintptr = 0x01C

	TI0R uintptr = 0x180
	RI0R uintptr = 0x1B0

	// Offsets within a mailbox of its identifier, length/time, data low
	// and data high registers.
	MailboxID     uintptr = 0x0
	MailboxLength uintptr = 0x4
	MailboxLow    uintptr = 0x8
	MailboxHigh   uintptr = 0xC

	// MailboxStride separates consecutive transmit mailboxes and receive
	// FIFO output mailboxes.
	MailboxStride uintptr = 0x10

	FMR   uintptr = 0x200
	FM1R  uintptr = 0x204
	FS1R  uintptr = 0x20C
	FFA1R uintptr = 0x214
	FA1R  uintptr = 0x21C

	FilterBank   uintptr = 0x240
	FilterStride uintptr = 0x08
	FR1          uintptr = 0x00
	FR2          uintptr = 0x04
)

// TI returns the offset of transmit mailbox n's identifier register.
func TI(n int) uintptr {
	return TI0R + uintptr(n)*MailboxStride
}

// RI returns the offset of receive FIFO n's output identifier register.
func RI(n int) uintptr {
	return RI0R + uintptr(n)*MailboxStride
}

// RF returns the offset of receive FIFO n's status register.
func RF(n int) uintptr {
	return RF0R + uintptr(n)*(RF1R-RF0R)
}

// Filter returns the offset of filter bank i's first register.
func Filter(i int) uintptr {
	return FilterBank + uintptr(i)*FilterStride
}

// MCR
const (
	INRQ  uint32 = 1 << 0
	SLEEP uint32 = 1 << 1
	TXFP  uint32 = 1 << 2
	RFLM  uint32 = 1 << 3
	NART  uint32 = 1 << 4
	AWUM  uint32 = 1 << 5
	ABOM  uint32 = 1 << 6
	TTCM  uint32 = 1 << 7
)

// MSR
const (
	INAK uint32 = 1 << 0
	SLAK uint32 = 1 << 1
)

// TSR. Mailbox n's RQCP/TXOK/ALST/TERR/ABRQ bits sit at the mailbox 0
// position shifted left by n*MailboxShift.
const (
	RQCP0 uint32 = 1 << 0
	TXOK0 uint32 = 1 << 1
	ALST0 uint32 = 1 << 2
	TERR0 uint32 = 1 << 3
	ABRQ0 uint32 = 1 << 7
	TME0  uint32 = 1 << 26
	TME1  uint32 = 1 << 27
	TME2  uint32 = 1 << 28

	MailboxShift = 8

	// TSRReset is the transmit status after reset: every mailbox empty.
	TSRReset = TME0 | TME1 | TME2
)

// TME returns the empty flag of mailbox n.
func TME(n int) uint32 {
	return TME0 << n
}

// MailboxBits shifts a mailbox 0 status bit to mailbox n.
func MailboxBits(bits uint32, n int) uint32 {
	return bits << (n * MailboxShift)
}

// RFxR
const (
	FMPShift uint   = 0
	FMPMask  uint32 = 0x3
	FULL     uint32 = 1 << 3
	FOVR     uint32 = 1 << 4
	RFOM     uint32 = 1 << 5
)

// IER
const (
	TMEIE  uint32 = 1 << 0
	FMPIE0 uint32 = 1 << 1
	FFIE0  uint32 = 1 << 2
	FOVIE0 uint32 = 1 << 3
	FMPIE1 uint32 = 1 << 4
	FFIE1  uint32 = 1 << 5
	FOVIE1 uint32 = 1 << 6
	EWGIE  uint32 = 1 << 8
	EPVIE  uint32 = 1 << 9
	BOFIE  uint32 = 1 << 10
	LECIE  uint32 = 1 << 11
	ERRIE  uint32 = 1 << 15
	WKUIE  uint32 = 1 << 16
	SLKIE  uint32 = 1 << 17
)

// ESR
const (
	EWGF      uint32 = 1 << 0
	EPVF      uint32 = 1 << 1
	BOFF      uint32 = 1 << 2
	LECShift  uint   = 4
	LECMask   uint32 = 0x7
	TECShift  uint   = 16
	RECShift  uint   = 24
	CountMask uint32 = 0xFF
)

// BTR
const (
	BRPShift uint   = 0
	BRPMask  uint32 = 0x3FF
	TS1Shift uint   = 16
	TS1Mask  uint32 = 0xF
	TS2Shift uint   = 20
	TS2Mask  uint32 = 0x7
	SJWShift uint   = 24
	SJWMask  uint32 = 0x3
	LBKM     uint32 = 1 << 30
	SILM     uint32 = 1 << 31
)

// TIxR / RIxR
const (
	TXRQ      uint32 = 1 << 0
	RTR       uint32 = 1 << 1
	IDE       uint32 = 1 << 2
	EXIDShift uint   = 3
	EXIDMask  uint32 = 0x1FFFFFFF
	STIDShift uint   = 21
	STIDMask  uint32 = 0x7FF
)

// TDTxR / RDTxR
const (
	DLCShift uint   = 0
	DLCMask  uint32 = 0xF
	FMIShift uint   = 8
	FMIMask  uint32 = 0xFF
)

// FMR
const (
	FINIT uint32 = 1 << 0
)
