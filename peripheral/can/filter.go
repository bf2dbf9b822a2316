package can

import "omibyte.io/bxcan/peripheral/can/internal/regs"

// FilterMode selects how a filter's value is matched.
type FilterMode uint8

const (
	// MaskMode accepts identifiers equal to the first register in the bits
	// set in the second.
	MaskMode FilterMode = 0
	// ListMode accepts identifiers equal to either register.
	ListMode FilterMode = 1
)

// Filter is one acceptance filter bank entry.
type Filter struct {
	Index  uint8
	Mode   FilterMode
	FIFO   FIFO
	Active bool
	// Value is written to both filter registers of the bank in the layout of
	// the receive identifier register; see FilterID.
	Value uint32
}

// FilterInit programs filter f.Index. Indexes above 13 are ignored without
// touching any register.
//
// Filter initialization mode halts matching on every filter, not only the
// one being programmed, until FilterInit returns.
func (c *CAN) FilterInit(f Filter) {
	if int(f.Index) >= NumFilters {
		return
	}
	bit := uint32(1) << f.Index

	c.regs.fmr.SetBits(regs.FINIT)

	c.regs.fm1r.ReplaceBits(bit, f.Mode == ListMode)
	// One 32-bit value per bank.
	c.regs.fs1r.SetBits(bit)
	c.regs.ffa1r.ReplaceBits(bit, f.FIFO == FIFO1)
	c.regs.fa1r.ReplaceBits(bit, f.Active)

	c.regs.filters[f.Index][0].Set(f.Value)
	c.regs.filters[f.Index][1].Set(f.Value)

	c.regs.fmr.ClearBits(regs.FINIT)
}

// FilterID returns the 32-bit filter value matching the given identifier.
func FilterID(id uint32, extended, rtr bool) uint32 {
	return encodeID(id, extended, rtr)
}
