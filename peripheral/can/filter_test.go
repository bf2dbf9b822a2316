package can

import (
	"testing"

	"omibyte.io/bxcan/peripheral/can/internal/regs"
	"omibyte.io/bxcan/peripheral/mmio"
)

func TestFilterInitOutOfRange(t *testing.T) {
	c, bank := newTestCAN(t)
	for _, index := range []uint8{14, 15, 255} {
		c.FilterInit(Filter{Index: index, Active: true, Value: 1})
	}
	if journal := bank.Journal(); len(journal) != 0 {
		t.Fatalf("%d register accesses for out of range filters", len(journal))
	}
}

func TestFilterInitSequence(t *testing.T) {
	c, bank := newTestCAN(t)
	c.FilterInit(Filter{Index: 13, Mode: ListMode, FIFO: FIFO1, Active: true, Value: 0xDEADBEEF})

	const bit = 1 << 13
	want := []mmio.Access{
		{Op: mmio.OpStore, Offset: 0x200, Value: regs.FINIT},
		{Op: mmio.OpStore, Offset: 0x204, Value: bit},
		{Op: mmio.OpStore, Offset: 0x20C, Value: bit},
		{Op: mmio.OpStore, Offset: 0x214, Value: bit},
		{Op: mmio.OpStore, Offset: 0x21C, Value: bit},
		{Op: mmio.OpStore, Offset: 0x2A8, Value: 0xDEADBEEF},
		{Op: mmio.OpStore, Offset: 0x2AC, Value: 0xDEADBEEF},
		{Op: mmio.OpStore, Offset: 0x200, Value: 0},
	}
	got := bank.Stores()
	if len(got) != len(want) {
		t.Fatalf("stores %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("store %d: %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFilterInitKeepsOtherFilters(t *testing.T) {
	c, bank := newTestCAN(t)
	bank.Poke(regs.FMR, 0x2A0E<<8)
	bank.Poke(regs.FM1R, 0x3FFF)
	bank.Poke(regs.FFA1R, 0x3FFF)
	bank.Poke(regs.FA1R, 0x3FFF)

	c.FilterInit(Filter{Index: 3, Mode: MaskMode, FIFO: FIFO0, Active: false, Value: 7})

	tests := []struct {
		offset uintptr
		want   uint32
	}{
		{regs.FMR, 0x2A0E << 8},
		{regs.FM1R, 0x3FF7},
		{regs.FS1R, 0x0008},
		{regs.FFA1R, 0x3FF7},
		{regs.FA1R, 0x3FF7},
		{regs.Filter(3) + regs.FR1, 7},
		{regs.Filter(3) + regs.FR2, 7},
		{regs.Filter(2) + regs.FR1, 0},
	}
	for _, tc := range tests {
		if got := bank.Peek(tc.offset); got != tc.want {
			t.Errorf("%#x = %#x, want %#x", tc.offset, got, tc.want)
		}
	}
}
