package can

import (
	"encoding/binary"
	"errors"

	"omibyte.io/bxcan/peripheral/can/internal/regs"
)

const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
	MaxDataLength = 8
)

var (
	ErrInvalidID     = errors.New("identifier does not fit its width")
	ErrInvalidLength = errors.New("data length exceeds 8 bytes")
)

// Frame is one classical CAN message.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	Len      uint8
	Data     [8]byte

	// Set by Read only.
	Received    bool
	FilterIndex uint8
	FIFO        FIFO
}

// NewFrame returns a data frame carrying data. Identifiers above
// MaxStandardID select the extended format.
func NewFrame(id uint32, data ...byte) (Frame, error) {
	f := Frame{ID: id, Extended: id > MaxStandardID}
	if len(data) > MaxDataLength {
		return Frame{}, ErrInvalidLength
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate reports whether the identifier fits its declared width and the
// length is at most 8.
func (f Frame) Validate() error {
	if f.Len > MaxDataLength {
		return ErrInvalidLength
	}
	if f.Extended && f.ID > MaxExtendedID || !f.Extended && f.ID > MaxStandardID {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the first Len data bytes. Lengths above 8 are clamped, as
// the controller does for data length codes 9 through 15.
func (f *Frame) Payload() []byte {
	n := f.Len
	if n > MaxDataLength {
		n = MaxDataLength
	}
	return f.Data[:n]
}

// packData splits a payload into the data low and data high register values.
// Byte i lands in lane i%4 (bits 8*(i%4) and up) of the low register for
// i < 4 and of the high register otherwise.
func packData(data [8]byte) (low, high uint32) {
	return binary.LittleEndian.Uint32(data[0:4]), binary.LittleEndian.Uint32(data[4:8])
}

func unpackData(low, high uint32) (data [8]byte) {
	binary.LittleEndian.PutUint32(data[0:4], low)
	binary.LittleEndian.PutUint32(data[4:8], high)
	return
}

// encodeID returns the identifier register value for the frame without the
// transmit request bit, in the layout shared by mailboxes, FIFO outputs and
// 32-bit filters.
func encodeID(id uint32, extended, rtr bool) uint32 {
	var v uint32
	if extended {
		v = (id&regs.EXIDMask)<<regs.EXIDShift | regs.IDE
	} else {
		v = (id & regs.STIDMask) << regs.STIDShift
	}
	if rtr {
		v |= regs.RTR
	}
	return v
}
