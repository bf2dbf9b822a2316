package can

import (
	"fmt"
	"testing"

	"omibyte.io/bxcan/peripheral/can/internal/regs"
	"omibyte.io/bxcan/peripheral/mmio"
)

func TestReadEmpty(t *testing.T) {
	c, bank := newTestCAN(t)

	if c.ReadPending() {
		t.Fatal("pending with empty FIFOs")
	}
	if f := c.Read(); f.Received || f != (Frame{}) {
		t.Fatalf("read %+v from empty FIFOs", f)
	}
	if stores := bank.Stores(); len(stores) != 0 {
		t.Fatalf("%d stores with empty FIFOs", len(stores))
	}
}

func TestReadSelection(t *testing.T) {
	tests := []struct {
		n0, n1 uint32
		want   FIFO
	}{
		{1, 0, FIFO0},
		{0, 1, FIFO1},
		{3, 1, FIFO0},
		{1, 1, FIFO0},
		{3, 3, FIFO0},
		{1, 2, FIFO1},
		{2, 3, FIFO1},
	}
	for _, tc := range tests {
		c, bank := newTestCAN(t)
		bank.Poke(regs.RF0R, tc.n0)
		bank.Poke(regs.RF1R, tc.n1)
		bank.Poke(regs.RI(0), 0x100<<regs.STIDShift)
		bank.Poke(regs.RI(1), 0x200<<regs.STIDShift)

		if !c.ReadPending() {
			t.Fatalf("%d/%d: not pending", tc.n0, tc.n1)
		}
		f := c.Read()
		if !f.Received || f.FIFO != tc.want || f.ID != 0x100*(uint32(tc.want)+1) {
			t.Errorf("%d/%d: read %+v, want FIFO %d", tc.n0, tc.n1, f, tc.want)
		}

		want := mmio.Access{Op: mmio.OpStore, Offset: regs.RF(int(tc.want)), Value: regs.RFOM}
		if stores := bank.Stores(); len(stores) != 1 || stores[0] != want {
			t.Errorf("%d/%d: stores %+v, want %+v", tc.n0, tc.n1, stores, want)
		}
	}
}

func TestReadDecode(t *testing.T) {
	c, bank := newTestCAN(t)
	bank.Poke(regs.RF1R, 1)
	base := regs.RI(1)
	bank.Poke(base+regs.MailboxID, 0x0D5E6F7E)
	bank.Poke(base+regs.MailboxLength, 0xABCD0000|5<<regs.FMIShift|6)
	bank.Poke(base+regs.MailboxLow, 0x44332211)
	bank.Poke(base+regs.MailboxHigh, 0x88776655)

	got := c.Read()
	want := Frame{
		ID:          0x1ABCDEF,
		Extended:    true,
		RTR:         true,
		Len:         6,
		Data:        [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
		Received:    true,
		FilterIndex: 5,
		FIFO:        FIFO1,
	}
	if got != want {
		t.Fatalf("read %+v, want %+v", got, want)
	}
}

// TestEcho copies what Write puts in mailbox 0 into the FIFO 0 output
// registers and reads it back.
func TestEcho(t *testing.T) {
	c, bank := newTestCAN(t)
	for _, extended := range []bool{false, true} {
		for n := 0; n <= MaxDataLength; n++ {
			name := fmt.Sprintf("extended=%v/len=%d", extended, n)
			data := make([]byte, n)
			for i := range data {
				data[i] = byte(0xA0 + i)
			}
			sent := Frame{ID: 0x5A5, Extended: extended, Len: uint8(n)}
			if extended {
				sent.ID = 0x15A5A5A5
			}
			copy(sent.Data[:], data)

			bank.Poke(regs.TSR, regs.TME0)
			if !c.Write(sent) {
				t.Fatalf("%s: no free mailbox", name)
			}
			for _, off := range []uintptr{regs.MailboxID, regs.MailboxLength, regs.MailboxLow, regs.MailboxHigh} {
				v := bank.Peek(regs.TI(0) + off)
				if off == regs.MailboxID {
					v &^= regs.TXRQ
				}
				bank.Poke(regs.RI(0)+off, v)
			}
			bank.Poke(regs.RF0R, 1)

			got := c.Read()
			if got.ID != sent.ID || got.Extended != extended || got.Len != sent.Len ||
				string(got.Payload()) != string(data) {
				t.Errorf("%s: read %+v, sent %+v", name, got, sent)
			}
			bank.Poke(regs.RF0R, 0)
		}
	}
}

func TestReleaseFIFO(t *testing.T) {
	tests := []struct {
		fifo   FIFO
		stores []mmio.Access
	}{
		{FIFO0, []mmio.Access{{Op: mmio.OpStore, Offset: regs.RF0R, Value: regs.RFOM}}},
		{FIFO1, []mmio.Access{{Op: mmio.OpStore, Offset: regs.RF1R, Value: regs.RFOM}}},
		{FIFO(2), nil},
	}
	for _, tc := range tests {
		c, bank := newTestCAN(t)
		bank.Poke(regs.RF0R, 3|regs.FULL|regs.FOVR)
		c.ReleaseFIFO(tc.fifo)

		got := bank.Journal()
		if len(got) != len(tc.stores) {
			t.Fatalf("FIFO %d: journal %+v", tc.fifo, got)
		}
		for i := range got {
			if got[i] != tc.stores[i] {
				t.Fatalf("FIFO %d: journal %+v, want %+v", tc.fifo, got, tc.stores)
			}
		}
	}
}

func TestFIFOStatus(t *testing.T) {
	c, bank := newTestCAN(t)
	bank.Poke(regs.RF0R, 3|regs.FULL|regs.FOVR)
	bank.Poke(regs.RF1R, 1)

	tests := []struct {
		fifo FIFO
		want FIFOStatus
	}{
		{FIFO0, FIFOStatus{Pending: 3, Full: true, Overrun: true}},
		{FIFO1, FIFOStatus{Pending: 1}},
		{FIFO(5), FIFOStatus{}},
	}
	for _, tc := range tests {
		if got := c.FIFOStatus(tc.fifo); got != tc.want {
			t.Errorf("FIFO %d: %+v, want %+v", tc.fifo, got, tc.want)
		}
	}

	bank.ResetJournal()
	c.ClearFIFOFlags(FIFO1)
	c.ClearFIFOFlags(FIFO(2))
	want := mmio.Access{Op: mmio.OpStore, Offset: regs.RF1R, Value: regs.FULL | regs.FOVR}
	if stores := bank.Stores(); len(stores) != 1 || stores[0] != want {
		t.Fatalf("stores %+v, want %+v", stores, want)
	}
}
