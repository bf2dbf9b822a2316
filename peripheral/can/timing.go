package can

// ReferenceClockHz is the peripheral clock the BaudRate table assumes.
const ReferenceClockHz = 32_000_000

// BaudRate is one of the bus speeds with a known prescaler.
type BaudRate uint8

const (
	Baud125k BaudRate = iota
	Baud250k
	Baud500k
	Baud1M
)

func (b BaudRate) String() string {
	switch b {
	case Baud125k:
		return "125k"
	case Baud250k:
		return "250k"
	case Baud500k:
		return "500k"
	case Baud1M:
		return "1M"
	default:
		return "unknown"
	}
}

// Prescaler returns the clock divisor producing the rate from
// ReferenceClockHz with the default 16 quanta bit. Unknown rates return 0.
func (b BaudRate) Prescaler() uint16 {
	switch b {
	case Baud125k:
		return 16
	case Baud250k:
		return 8
	case Baud500k:
		return 4
	case Baud1M:
		return 2
	default:
		return 0
	}
}

// BitTiming holds the bit timing register fields. Every field is stored as
// the hardware encodes it: one less than the quantity it represents.
type BitTiming struct {
	Prescaler    uint16 // 10 bits
	BeforeSample uint8  // time segment 1, 4 bits
	AfterSample  uint8  // time segment 2, 3 bits
	JumpWidth    uint8  // resynchronization jump width, 2 bits
}

// DefaultTiming is a 16 quanta bit sampled at 87.5% with a prescaler of 1.
var DefaultTiming = BitTiming{
	Prescaler:    0,
	BeforeSample: 12,
	AfterSample:  1,
	JumpWidth:    0,
}

// TimingFor returns DefaultTiming with the prescaler for rate. This is a
// lookup, not a solver: other rates or clocks need a hand-built BitTiming.
func TimingFor(rate BaudRate) BitTiming {
	t := DefaultTiming
	if p := rate.Prescaler(); p > 0 {
		t.Prescaler = p - 1
	}
	return t
}

// Quanta returns the number of time quanta in one bit.
func (t BitTiming) Quanta() uint32 {
	return 1 + (uint32(t.BeforeSample) + 1) + (uint32(t.AfterSample) + 1)
}

// BitRate returns the bus bit rate produced from a peripheral clock of
// clockHz.
func (t BitTiming) BitRate(clockHz uint32) uint32 {
	return clockHz / ((uint32(t.Prescaler) + 1) * t.Quanta())
}

// SamplePoint returns the sample point in per mille of the bit time.
func (t BitTiming) SamplePoint() uint32 {
	return (1 + uint32(t.BeforeSample) + 1) * 1000 / t.Quanta()
}
