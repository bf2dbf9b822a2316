package cansim

import (
	"runtime"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"omibyte.io/bxcan/peripheral/can"
	"omibyte.io/bxcan/peripheral/can/internal/regs"
)

func TestNetworkAttach(t *testing.T) {
	metrics := NewMetrics(nil)
	nw := NewNetwork(metrics, nil)

	a := nw.Attach(Options{Name: "a"})
	own := NewMetrics(nil)
	b := nw.Attach(Options{Name: "b", Metrics: own})

	if a.metrics != metrics || b.metrics != own {
		t.Fatal("network metrics not applied as default")
	}
	if got, ok := nw.Node("b"); !ok || got != b {
		t.Fatal("node b not found")
	}
	if _, ok := nw.Node("c"); ok {
		t.Fatal("unknown node found")
	}

	nw.Detach(a)
	nodes := nw.Nodes()
	if len(nodes) != 1 || nodes[0] != b {
		t.Fatalf("nodes after detach: %d", len(nodes))
	}
}

func TestNetworkBroadcast(t *testing.T) {
	reg := prometheus.NewRegistry()
	nw := NewNetwork(NewMetrics(reg), nil)
	a, _ := open(t, nw, "a", can.DefaultConfig())
	b, _ := open(t, nw, "b", can.DefaultConfig())
	c, _ := open(t, nw, "c", can.DefaultConfig())
	acceptAll(a)
	acceptAll(b)
	acceptAll(c)

	a.Write(can.Frame{ID: 0x10})
	nw.Tick()

	if a.ReadPending() {
		t.Fatal("sender received its own frame outside loopback")
	}
	for name, rx := range map[string]*can.CAN{"b": b, "c": c} {
		if got := rx.Read(); got.ID != 0x10 {
			t.Errorf("%s read %+v", name, got)
		}
		labels := map[string]string{"node": name, "fifo": "0"}
		if got := counter(t, reg, "cansim_frames_received_total", labels); got != 1 {
			t.Errorf("%s: %v frames counted, want 1", name, got)
		}
	}
}

func TestNetworkRun(t *testing.T) {
	nw := NewNetwork(nil, nil)
	a, _ := open(t, nw, "a", can.DefaultConfig())
	b, _ := open(t, nw, "b", can.DefaultConfig())
	acceptAll(a)
	acceptAll(b)

	a.Write(can.Frame{ID: 1})
	a.Write(can.Frame{ID: 2})
	b.Write(can.Frame{ID: 3})

	if got := nw.Run(10); got != 3 {
		t.Fatalf("Run transmitted %d frames, want 3", got)
	}
	if got := nw.Run(10); got != 0 {
		t.Fatalf("idle Run transmitted %d frames", got)
	}
	if !a.ReadPending() || !b.ReadPending() {
		t.Fatal("frames not delivered")
	}
}

func TestDetachedNodeIsolated(t *testing.T) {
	nw := NewNetwork(nil, nil)
	a, _ := open(t, nw, "a", can.DefaultConfig())
	b, nb := open(t, nw, "b", can.DefaultConfig())
	acceptAll(b)
	nw.Detach(nb)

	a.Write(can.Frame{ID: 7})
	nw.Tick()
	if b.ReadPending() {
		t.Fatal("detached node received a frame")
	}
}

// The driver acknowledges mailboxes while the bus completes transmissions on
// another goroutine. Every completion must survive the driver's status
// register stores or the mailbox stays busy for good.
func TestConcurrentTickAndAcknowledge(t *testing.T) {
	const rounds = 500

	nw := NewNetwork(nil, nil)
	tx, txNode := open(t, nw, "tx", can.DefaultConfig())
	rx, _ := open(t, nw, "rx", can.DefaultConfig())
	acceptAll(rx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			n := nw.Tick()
			mu.Lock()
			sent += n
			mu.Unlock()
			for rx.ReadPending() {
				rx.Read()
			}
			runtime.Gosched()
		}
	}()
	stop := func() {
		close(done)
		wg.Wait()
	}

	frame, _ := can.NewFrame(0x100, 1, 2)
	for i := 0; i < rounds; i++ {
		for spins := 0; !tx.WriteFree(); spins++ {
			if spins > 1_000_000 {
				stop()
				t.Fatalf("round %d: no mailbox free, TSR=%#x", i, txNode.Bank().Peek(regs.TSR))
			}
			runtime.Gosched()
		}
		if !tx.Write(frame) {
			stop()
			t.Fatalf("round %d: write refused with a free mailbox", i)
		}
		for mb := can.Mailbox(0); mb < can.NumMailboxes; mb++ {
			tx.AcknowledgeTransmit(mb)
		}
	}
	stop()

	sent += nw.Run(10)
	if sent != rounds {
		t.Fatalf("sent %d frames, want %d", sent, rounds)
	}
	tsr := txNode.Bank().Peek(regs.TSR)
	for mb := 0; mb < regs.NumMailboxes; mb++ {
		if tsr&regs.TME(mb) == 0 {
			t.Errorf("mailbox %d busy after the bus went idle, TSR=%#x", mb, tsr)
		}
	}
}
