package can

import "omibyte.io/bxcan/peripheral/can/internal/regs"

// Mailbox numbers a transmit mailbox.
type Mailbox uint8

const (
	Mailbox0 Mailbox = 0
	Mailbox1 Mailbox = 1
	Mailbox2 Mailbox = 2
)

// MailboxStatus is the transmit status of one mailbox.
type MailboxStatus struct {
	Empty           bool
	RequestComplete bool
	TransmitOK      bool
	ArbitrationLost bool
	TransmitError   bool
}

// Write loads frame into the first empty mailbox, checked in order 0, 1, 2,
// and requests its transmission. Once requested the mailbox belongs to the
// hardware until it reports it empty again. Write returns false without
// touching any register when no mailbox is empty.
//
// The identifier and length are masked to their register fields; use
// Frame.Validate to reject out of range frames beforehand.
func (c *CAN) Write(frame Frame) bool {
	mb, ok := c.freeMailbox()
	if !ok {
		return false
	}
	tx := c.regs.tx[mb]

	tx.id.ReplaceBits(regs.RTR, frame.RTR)
	if frame.Extended {
		tx.id.SetBits(regs.IDE)
		tx.id.SetField(regs.EXIDShift, regs.EXIDMask, frame.ID)
	} else {
		tx.id.ClearBits(regs.IDE)
		tx.id.SetField(regs.STIDShift, regs.STIDMask, frame.ID)
	}

	tx.length.SetField(regs.DLCShift, regs.DLCMask, uint32(frame.Len))

	low, high := packData(frame.Data)
	tx.low.Set(low)
	tx.high.Set(high)

	// Hand the mailbox over.
	tx.id.SetBits(regs.TXRQ)
	return true
}

// WriteFree reports whether at least one mailbox is empty.
func (c *CAN) WriteFree() bool {
	_, ok := c.freeMailbox()
	return ok
}

func (c *CAN) freeMailbox() (Mailbox, bool) {
	tsr := c.regs.tsr.Get()
	for mb := Mailbox0; mb <= Mailbox2; mb++ {
		if tsr&regs.TME(int(mb)) != 0 {
			return mb, true
		}
	}
	return 0, false
}

// TransmitStatus decodes the transmit status of mb. Out of range mailboxes
// report the zero status.
func (c *CAN) TransmitStatus(mb Mailbox) MailboxStatus {
	if mb >= NumMailboxes {
		return MailboxStatus{}
	}
	tsr := c.regs.tsr.Get()
	n := int(mb)
	return MailboxStatus{
		Empty:           tsr&regs.TME(n) != 0,
		RequestComplete: tsr&regs.MailboxBits(regs.RQCP0, n) != 0,
		TransmitOK:      tsr&regs.MailboxBits(regs.TXOK0, n) != 0,
		ArbitrationLost: tsr&regs.MailboxBits(regs.ALST0, n) != 0,
		TransmitError:   tsr&regs.MailboxBits(regs.TERR0, n) != 0,
	}
}

// AcknowledgeTransmit clears the request-complete flags of mb.
func (c *CAN) AcknowledgeTransmit(mb Mailbox) {
	if mb >= NumMailboxes {
		return
	}
	// Write-one-to-clear: a plain write leaves other mailboxes alone.
	c.regs.tsr.Set(regs.MailboxBits(regs.RQCP0, int(mb)))
}

// AbortTransmit asks the hardware to abandon the pending request in mb. The
// mailbox becomes empty once the hardware honours the abort.
func (c *CAN) AbortTransmit(mb Mailbox) {
	if mb >= NumMailboxes {
		return
	}
	c.regs.tsr.Set(regs.MailboxBits(regs.ABRQ0, int(mb)))
}
