package can

import (
	"errors"
	"testing"
)

func TestPackData(t *testing.T) {
	data := [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	low, high := packData(data)
	if low != 0x44332211 || high != 0x88776655 {
		t.Fatalf("packed %#08x %#08x", low, high)
	}
	if got := unpackData(low, high); got != data {
		t.Fatalf("unpacked % x", got)
	}
}

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		frame Frame
		want  error
	}{
		{Frame{ID: MaxStandardID}, nil},
		{Frame{ID: MaxStandardID + 1}, ErrInvalidID},
		{Frame{ID: MaxStandardID + 1, Extended: true}, nil},
		{Frame{ID: MaxExtendedID, Extended: true, Len: 8}, nil},
		{Frame{ID: MaxExtendedID + 1, Extended: true}, ErrInvalidID},
		{Frame{Len: 9}, ErrInvalidLength},
	}
	for _, tc := range tests {
		if got := tc.frame.Validate(); got != tc.want {
			t.Errorf("%+v: %v, want %v", tc.frame, got, tc.want)
		}
	}
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(0x7FF, 1, 2)
	if err != nil || f.Extended || f.Len != 2 || f.Data[1] != 2 {
		t.Fatalf("standard: %+v, %v", f, err)
	}

	f, err = NewFrame(0x800)
	if err != nil || !f.Extended || f.Len != 0 {
		t.Fatalf("extended: %+v, %v", f, err)
	}

	tests := []struct {
		name string
		id   uint32
		data []byte
		want error
	}{
		{"nine bytes", 1, make([]byte, 9), ErrInvalidLength},
		{"30-bit identifier", MaxExtendedID + 1, []byte{0xAA}, ErrInvalidID},
	}
	for _, tc := range tests {
		f, err := NewFrame(tc.id, tc.data...)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: error %v, want %v", tc.name, err, tc.want)
		}
		if f != (Frame{}) {
			t.Errorf("%s: returned %+v alongside the error", tc.name, f)
		}
	}
}

func TestPayload(t *testing.T) {
	f := Frame{Len: 3, Data: [8]byte{1, 2, 3, 4}}
	if got := f.Payload(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("payload % x", got)
	}
	f.Len = 15
	if got := f.Payload(); len(got) != MaxDataLength {
		t.Fatalf("payload of DLC 15 has %d bytes", len(got))
	}
}

func TestFilterID(t *testing.T) {
	tests := []struct {
		id            uint32
		extended, rtr bool
		want          uint32
	}{
		{0x123, false, false, 0x24600000},
		{0x7FF, false, true, 0xFFE00002},
		{0x1ABCDEF, true, false, 0x0D5E6F7C},
		{0x1FFFFFFF, true, true, 0xFFFFFFFE},
	}
	for _, tc := range tests {
		if got := FilterID(tc.id, tc.extended, tc.rtr); got != tc.want {
			t.Errorf("FilterID(%#x, %v, %v) = %#08x, want %#08x", tc.id, tc.extended, tc.rtr, got, tc.want)
		}
	}
}
