package can

import "omibyte.io/bxcan/peripheral/can/internal/regs"

// FIFO numbers a receive FIFO.
type FIFO uint8

const (
	FIFO0 FIFO = 0
	FIFO1 FIFO = 1
)

// FIFOStatus is the state of one receive FIFO.
type FIFOStatus struct {
	Pending uint8
	Full    bool
	Overrun bool
}

// ReadPending reports whether either FIFO holds a message.
func (c *CAN) ReadPending() bool {
	return c.pending(FIFO0) > 0 || c.pending(FIFO1) > 0
}

func (c *CAN) pending(fifo FIFO) uint32 {
	return c.regs.rf[fifo].Field(regs.FMPShift, regs.FMPMask)
}

// Read takes the head message of the fuller FIFO, FIFO 0 on a tie, and
// releases it to the hardware. With both FIFOs empty it returns a frame
// whose Received flag is false and writes nothing.
func (c *CAN) Read() Frame {
	var fifo FIFO
	switch n0, n1 := c.pending(FIFO0), c.pending(FIFO1); {
	case n0 == 0 && n1 == 0:
		return Frame{}
	case n1 > n0:
		fifo = FIFO1
	default:
		fifo = FIFO0
	}

	rx := c.regs.rx[fifo]
	frame := Frame{
		Received: true,
		FIFO:     fifo,
	}

	frame.Extended = rx.id.HasBits(regs.IDE)
	if frame.Extended {
		frame.ID = rx.id.Field(regs.EXIDShift, regs.EXIDMask)
	} else {
		frame.ID = rx.id.Field(regs.STIDShift, regs.STIDMask)
	}
	frame.RTR = rx.id.HasBits(regs.RTR)
	frame.Len = uint8(rx.length.Field(regs.DLCShift, regs.DLCMask))
	frame.FilterIndex = uint8(rx.length.Field(regs.FMIShift, regs.FMIMask))
	frame.Data = unpackData(rx.low.Get(), rx.high.Get())

	c.ReleaseFIFO(fifo)
	return frame
}

// ReleaseFIFO drops the head message of fifo, exposing the next one. Unknown
// FIFOs are ignored.
func (c *CAN) ReleaseFIFO(fifo FIFO) {
	if fifo >= NumFIFOs {
		return
	}
	// FMP is read-only and FULL/FOVR are write-one-to-clear, so a plain
	// write of RFOM touches nothing else.
	c.regs.rf[fifo].Set(regs.RFOM)
}

// FIFOStatus decodes the status register of fifo. Unknown FIFOs report the
// zero status.
func (c *CAN) FIFOStatus(fifo FIFO) FIFOStatus {
	if fifo >= NumFIFOs {
		return FIFOStatus{}
	}
	rf := c.regs.rf[fifo].Get()
	return FIFOStatus{
		Pending: uint8((rf >> regs.FMPShift) & regs.FMPMask),
		Full:    rf&regs.FULL != 0,
		Overrun: rf&regs.FOVR != 0,
	}
}

// ClearFIFOFlags clears the full and overrun flags of fifo.
func (c *CAN) ClearFIFOFlags(fifo FIFO) {
	if fifo >= NumFIFOs {
		return
	}
	c.regs.rf[fifo].Set(regs.FULL | regs.FOVR)
}
