package can

import (
	"omibyte.io/bxcan/peripheral/can/internal/regs"
	"omibyte.io/bxcan/peripheral/mmio"
)

// mailbox is the identifier, length and data register quadruple shared by
// transmit mailboxes and receive FIFO output mailboxes.
type mailbox struct {
	id     mmio.Register
	length mmio.Register
	low    mmio.Register
	high   mmio.Register
}

func newMailbox(bus mmio.Bus, offset uintptr) mailbox {
	return mailbox{
		id:     mmio.Reg(bus, offset+regs.MailboxID),
		length: mmio.Reg(bus, offset+regs.MailboxLength),
		low:    mmio.Reg(bus, offset+regs.MailboxLow),
		high:   mmio.Reg(bus, offset+regs.MailboxHigh),
	}
}

// registers is the fixed register table of one controller.
type registers struct {
	mcr mmio.Register
	msr mmio.Register
	tsr mmio.Register
	rf  [regs.NumFIFOs]mmio.Register
	ier mmio.Register
	esr mmio.Register
	btr mmio.Register

	tx [regs.NumMailboxes]mailbox
	rx [regs.NumFIFOs]mailbox

	fmr   mmio.Register
	fm1r  mmio.Register
	fs1r  mmio.Register
	ffa1r mmio.Register
	fa1r  mmio.Register

	filters [regs.NumFilters][2]mmio.Register
}

func newRegisters(bus mmio.Bus) registers {
	r := registers{
		mcr:   mmio.Reg(bus, regs.MCR),
		msr:   mmio.Reg(bus, regs.MSR),
		tsr:   mmio.Reg(bus, regs.TSR),
		ier:   mmio.Reg(bus, regs.IER),
		esr:   mmio.Reg(bus, regs.ESR),
		btr:   mmio.Reg(bus, regs.BTR),
		fmr:   mmio.Reg(bus, regs.FMR),
		fm1r:  mmio.Reg(bus, regs.FM1R),
		fs1r:  mmio.Reg(bus, regs.FS1R),
		ffa1r: mmio.Reg(bus, regs.FFA1R),
		fa1r:  mmio.Reg(bus, regs.FA1R),
	}
	for i := range r.rf {
		r.rf[i] = mmio.Reg(bus, regs.RF(i))
		r.rx[i] = newMailbox(bus, regs.RI(i))
	}
	for i := range r.tx {
		r.tx[i] = newMailbox(bus, regs.TI(i))
	}
	for i := range r.filters {
		r.filters[i][0] = mmio.Reg(bus, regs.Filter(i)+regs.FR1)
		r.filters[i][1] = mmio.Reg(bus, regs.Filter(i)+regs.FR2)
	}
	return r
}
