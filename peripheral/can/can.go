// Package can drives a bxCAN controller through its memory-mapped registers.
//
// The driver is synchronous and holds no state of its own beyond the
// register table: mailboxes and FIFOs are owned by the hardware and queried
// through status bits on every call. A CAN value must be used from one
// execution context at a time; it does no locking of its own.
package can

import (
	"errors"
	"reflect"
	"sync"

	"omibyte.io/bxcan/peripheral"
	"omibyte.io/bxcan/peripheral/can/internal/regs"
	"omibyte.io/bxcan/peripheral/mmio"
)

const (
	NumMailboxes = regs.NumMailboxes
	NumFIFOs     = regs.NumFIFOs
	NumFilters   = regs.NumFilters

	// DefaultPollLimit is the number of status reads each step of the
	// initialization handshake waits for before giving up. It counts loop
	// iterations, not time, so the wait scales with the CPU clock.
	DefaultPollLimit = 0x10001

	ErrEnterInitTimeout CANError = -1
	ErrLeaveInitTimeout CANError = -2
)

// ErrTimeout matches every handshake timeout through errors.Is.
var ErrTimeout = errors.New("controller did not acknowledge")

type CANError int

func (e CANError) Error() string {
	switch e {
	case 0:
		return "no error"
	case ErrEnterInitTimeout:
		return "timed out entering initialization mode"
	case ErrLeaveInitTimeout:
		return "timed out leaving initialization mode"
	default:
		return "unknown error"
	}
}

func (e CANError) Is(target error) bool {
	return target == ErrTimeout && (e == ErrEnterInitTimeout || e == ErrLeaveInitTimeout)
}

var (
	ownersMu sync.Mutex
	owners   = map[mmio.Bus]struct{}{}
)

// CAN is the handle of one controller.
type CAN struct {
	bus       mmio.Bus
	regs      registers
	pollLimit int
}

// Config is applied by Open while the controller is held in initialization
// mode.
type Config struct {
	// Transmit pending mailboxes in request order instead of identifier
	// priority.
	TransmitFIFOPriority bool
	// Discard incoming messages when a FIFO is full instead of overwriting
	// the last one.
	ReceiveFIFOLocked bool
	NoAutoRetransmit  bool
	AutoWakeup        bool
	AutoBusOff        bool
	TimeTriggered     bool

	Timing BitTiming

	// Test modes. Loopback receives the node's own transmissions; Silent
	// keeps the transmitter recessive.
	Loopback bool
	Silent   bool
}

// DefaultConfig returns automatic bus-off management with DefaultTiming.
func DefaultConfig() Config {
	return Config{
		AutoBusOff: true,
		Timing:     DefaultTiming,
	}
}

// New returns the handle of the controller mapped at base. Only one handle
// may exist per base address.
func New(base uintptr) (*CAN, error) {
	return NewWithBus(mmio.Map(base))
}

// NewWithBus returns the handle of the controller behind bus. Only one
// handle may exist per bus. Buses are told apart by equality, so a bus whose
// type is not comparable, such as a struct holding a slice, is rejected with
// peripheral.ErrInvalidConfig; pass a pointer to it instead.
func NewWithBus(bus mmio.Bus) (*CAN, error) {
	if bus == nil || !reflect.TypeOf(bus).Comparable() {
		return nil, peripheral.ErrInvalidConfig
	}

	ownersMu.Lock()
	defer ownersMu.Unlock()
	if _, ok := owners[bus]; ok {
		return nil, peripheral.ErrInUse
	}
	owners[bus] = struct{}{}

	return &CAN{
		bus:       bus,
		regs:      newRegisters(bus),
		pollLimit: DefaultPollLimit,
	}, nil
}

// SetPollLimit replaces the handshake poll bound. Values below 1 are raised
// to 1.
func (c *CAN) SetPollLimit(n int) {
	if n < 1 {
		n = 1
	}
	c.pollLimit = n
}

// PollLimit returns the handshake poll bound.
func (c *CAN) PollLimit() int {
	return c.pollLimit
}

// Open wakes the controller, holds it in initialization mode while config is
// applied and then releases it onto the bus. A timeout on either side of the
// handshake is returned as is; registers already written stay written.
// Entering initialization mode does not reset fields Open does not write.
func (c *CAN) Open(config Config) error {
	// Leave sleep and request initialization mode.
	c.regs.mcr.ClearBits(regs.SLEEP)
	c.regs.mcr.SetBits(regs.INRQ)

	if !c.waitInit(true) {
		return ErrEnterInitTimeout
	}

	c.regs.mcr.ReplaceBits(regs.TXFP, config.TransmitFIFOPriority)
	c.regs.mcr.ReplaceBits(regs.RFLM, config.ReceiveFIFOLocked)
	c.regs.mcr.ReplaceBits(regs.NART, config.NoAutoRetransmit)
	c.regs.mcr.ReplaceBits(regs.AWUM, config.AutoWakeup)
	c.regs.mcr.ReplaceBits(regs.ABOM, config.AutoBusOff)
	c.regs.mcr.ReplaceBits(regs.TTCM, config.TimeTriggered)

	// The bit timing register is only writable in initialization mode.
	c.setTiming(config.Timing)
	c.regs.btr.ReplaceBits(regs.LBKM, config.Loopback)
	c.regs.btr.ReplaceBits(regs.SILM, config.Silent)

	c.regs.mcr.ClearBits(regs.INRQ)

	if !c.waitInit(false) {
		return ErrLeaveInitTimeout
	}
	return nil
}

func (c *CAN) setTiming(t BitTiming) {
	c.regs.btr.SetField(regs.BRPShift, regs.BRPMask, uint32(t.Prescaler))
	c.regs.btr.SetField(regs.TS1Shift, regs.TS1Mask, uint32(t.BeforeSample))
	c.regs.btr.SetField(regs.TS2Shift, regs.TS2Mask, uint32(t.AfterSample))
	c.regs.btr.SetField(regs.SJWShift, regs.SJWMask, uint32(t.JumpWidth))
}

// waitInit reads MSR.INAK until it equals on, at most pollLimit times.
func (c *CAN) waitInit(on bool) bool {
	for i := 0; i < c.pollLimit; i++ {
		if c.regs.msr.HasBits(regs.INAK) == on {
			return true
		}
	}
	return false
}

// Timing returns the bit timing currently programmed.
func (c *CAN) Timing() BitTiming {
	btr := c.regs.btr.Get()
	return BitTiming{
		Prescaler:    uint16((btr >> regs.BRPShift) & regs.BRPMask),
		BeforeSample: uint8((btr >> regs.TS1Shift) & regs.TS1Mask),
		AfterSample:  uint8((btr >> regs.TS2Shift) & regs.TS2Mask),
		JumpWidth:    uint8((btr >> regs.SJWShift) & regs.SJWMask),
	}
}
