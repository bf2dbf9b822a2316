package can

import "omibyte.io/bxcan/peripheral/can/internal/regs"

// LastError is the last error code the controller detected on the bus.
type LastError uint8

const (
	NoError LastError = iota
	StuffError
	FormError
	AckError
	BitRecessiveError
	BitDominantError
	CRCError
	SoftwareSetError
)

func (e LastError) String() string {
	switch e {
	case NoError:
		return "none"
	case StuffError:
		return "stuff"
	case FormError:
		return "form"
	case AckError:
		return "acknowledgment"
	case BitRecessiveError:
		return "bit recessive"
	case BitDominantError:
		return "bit dominant"
	case CRCError:
		return "crc"
	default:
		return "set by software"
	}
}

// ErrorStatus is the decoded error status register.
type ErrorStatus struct {
	Warning        bool
	Passive        bool
	BusOff         bool
	LastError      LastError
	TransmitErrors uint8
	ReceiveErrors  uint8
}

// DecodeErrorStatus splits a raw error status register value.
func DecodeErrorStatus(esr uint32) ErrorStatus {
	return ErrorStatus{
		Warning:        esr&regs.EWGF != 0,
		Passive:        esr&regs.EPVF != 0,
		BusOff:         esr&regs.BOFF != 0,
		LastError:      LastError((esr >> regs.LECShift) & regs.LECMask),
		TransmitErrors: uint8((esr >> regs.TECShift) & regs.CountMask),
		ReceiveErrors:  uint8((esr >> regs.RECShift) & regs.CountMask),
	}
}

// ReadErrorStatus returns the raw error status register.
func (c *CAN) ReadErrorStatus() uint32 {
	return c.regs.esr.Get()
}

// ReadStatus returns the raw master status register.
func (c *CAN) ReadStatus() uint32 {
	return c.regs.msr.Get()
}

// Initializing reports whether the controller acknowledges initialization
// mode.
func (c *CAN) Initializing() bool {
	return c.regs.msr.HasBits(regs.INAK)
}

// Sleeping reports whether the controller acknowledges sleep mode.
func (c *CAN) Sleeping() bool {
	return c.regs.msr.HasBits(regs.SLAK)
}
