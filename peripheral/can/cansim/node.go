// Package cansim models the behaviour of a bxCAN controller behind an
// mmio.Bank so the driver can run without hardware.
//
// A Node reacts to register writes the way the controller does: it
// acknowledges initialization requests, takes ownership of mailboxes on a
// transmit request, applies the acceptance filters to incoming frames and
// manages the two three-deep receive FIFOs. Frames move between nodes of a
// Network on Tick.
package cansim

import (
	"encoding/binary"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/exp/slices"

	"omibyte.io/bxcan/internal/logging"
	"omibyte.io/bxcan/peripheral/can"
	"omibyte.io/bxcan/peripheral/can/internal/regs"
	"omibyte.io/bxcan/peripheral/mmio"
)

// Options configures a Node.
type Options struct {
	Name string
	// Number of status register reads before the initialization
	// acknowledge follows a request.
	AckDelay int
	// Never acknowledge entering or leaving initialization mode.
	NoAckEnter bool
	NoAckLeave bool

	Metrics *Metrics
	Logger  *slog.Logger
}

// rawFrame is a frame as the identifier, length and data registers hold it.
type rawFrame struct {
	id     uint32
	length uint32
	low    uint32
	high   uint32
}

// Node is one simulated controller.
type Node struct {
	name    string
	bank    *mmio.Bank
	opts    Options
	metrics *Metrics
	log     *slog.Logger

	mu         sync.Mutex
	ackPending bool
	ackWant    bool
	ackWait    int
	seq        uint64
	requested  [regs.NumMailboxes]uint64
	fifos      [regs.NumFIFOs][]rawFrame
}

// NewNode returns a controller in its reset state: asleep, all mailboxes
// empty, all FIFOs empty and every filter inactive.
func NewNode(opts Options) *Node {
	n := &Node{
		name:    opts.Name,
		bank:    mmio.NewBank(),
		opts:    opts,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if n.log == nil {
		n.log = logging.L()
	}
	n.log = n.log.With("node", n.name)

	n.bank.Poke(regs.MCR, regs.SLEEP)
	n.bank.Poke(regs.MSR, regs.SLAK)
	n.bank.Poke(regs.TSR, regs.TSRReset)

	n.bank.OnStore(regs.MCR, n.storeMCR)
	n.bank.OnLoad(regs.MSR, n.loadMSR)
	n.bank.OnStore(regs.MSR, readOnly)
	n.bank.OnStore(regs.BTR, n.storeBTR)
	n.bank.OnStore(regs.TSR, n.storeTSR)
	n.bank.OnStore(regs.ESR, readOnly)

	for mb := 0; mb < regs.NumMailboxes; mb++ {
		n.bank.OnStore(regs.TI(mb)+regs.MailboxID, n.storeTI(mb))
		n.bank.OnStore(regs.TI(mb)+regs.MailboxLength, n.storeMailboxData(mb))
		n.bank.OnStore(regs.TI(mb)+regs.MailboxLow, n.storeMailboxData(mb))
		n.bank.OnStore(regs.TI(mb)+regs.MailboxHigh, n.storeMailboxData(mb))
	}

	for fifo := 0; fifo < regs.NumFIFOs; fifo++ {
		n.bank.OnStore(regs.RF(fifo), n.storeRF(fifo))
		for _, off := range []uintptr{regs.MailboxID, regs.MailboxLength, regs.MailboxLow, regs.MailboxHigh} {
			n.bank.OnStore(regs.RI(fifo)+off, readOnly)
		}
	}

	for _, off := range []uintptr{regs.FM1R, regs.FS1R, regs.FFA1R} {
		n.bank.OnStore(off, n.storeFilterConfig)
	}
	for i := 0; i < regs.NumFilters; i++ {
		n.bank.OnStore(regs.Filter(i)+regs.FR1, n.storeFilterBank(i))
		n.bank.OnStore(regs.Filter(i)+regs.FR2, n.storeFilterBank(i))
	}

	return n
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Bank returns the register file the driver should be attached to.
func (n *Node) Bank() *mmio.Bank {
	return n.bank
}

func readOnly(old, _ uint32) uint32 {
	return old
}

func (n *Node) storeMCR(_, written uint32) uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()

	enter := written&regs.INRQ != 0
	n.bank.Update(regs.MSR, func(msr uint32) uint32 {
		if written&regs.SLEEP != 0 && !enter {
			return msr | regs.SLAK
		}
		return msr &^ regs.SLAK
	})

	inak := n.bank.Peek(regs.MSR)&regs.INAK != 0
	n.ackPending = inak != enter
	n.ackWant = enter
	n.ackWait = n.opts.AckDelay
	if n.ackPending && n.ackWait == 0 {
		n.acknowledge()
	}
	return written
}

func (n *Node) loadMSR(stored uint32) uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.ackPending {
		return stored
	}
	if n.ackWait > 0 {
		n.ackWait--
		return stored
	}
	n.acknowledge()
	return n.bank.Peek(regs.MSR)
}

// acknowledge moves INAK to the requested state unless the node is
// configured to never do so. Called with n.mu held.
func (n *Node) acknowledge() {
	if n.ackWant && n.opts.NoAckEnter || !n.ackWant && n.opts.NoAckLeave {
		return
	}
	n.ackPending = false
	want := n.ackWant
	n.bank.Update(regs.MSR, func(msr uint32) uint32 {
		if want {
			return msr | regs.INAK
		}
		return msr &^ regs.INAK
	})
	n.log.Debug("can_init_ack", "init", want)
}

func (n *Node) storeBTR(old, written uint32) uint32 {
	if n.bank.Peek(regs.MSR)&regs.INAK == 0 {
		return old
	}
	return written
}

func (n *Node) storeTSR(old, written uint32) uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()

	tsr := old
	for mb := 0; mb < regs.NumMailboxes; mb++ {
		if written&regs.MailboxBits(regs.RQCP0, mb) != 0 {
			tsr &^= regs.MailboxBits(regs.RQCP0|regs.TXOK0|regs.ALST0|regs.TERR0, mb)
		}
		if written&regs.MailboxBits(regs.ABRQ0, mb) != 0 && n.requested[mb] != 0 {
			n.requested[mb] = 0
			n.bank.Update(regs.TI(mb)+regs.MailboxID, func(v uint32) uint32 { return v &^ regs.TXRQ })
			tsr &^= regs.MailboxBits(regs.TXOK0, mb)
			tsr |= regs.MailboxBits(regs.RQCP0, mb) | regs.TME(mb)
			n.metrics.aborted(n.name)
			n.log.Debug("can_tx_abort", "mailbox", mb)
		}
	}
	return tsr
}

func (n *Node) storeTI(mb int) mmio.StoreHook {
	return func(old, written uint32) uint32 {
		n.mu.Lock()
		defer n.mu.Unlock()

		if n.requested[mb] != 0 {
			// The mailbox belongs to the hardware until it is empty again.
			return old
		}
		if written&regs.TXRQ != 0 {
			n.seq++
			n.requested[mb] = n.seq
			n.bank.Update(regs.TSR, func(tsr uint32) uint32 { return tsr &^ regs.TME(mb) })
		}
		return written
	}
}

func (n *Node) storeMailboxData(mb int) mmio.StoreHook {
	return func(old, written uint32) uint32 {
		n.mu.Lock()
		defer n.mu.Unlock()

		if n.requested[mb] != 0 {
			return old
		}
		return written
	}
}

func (n *Node) storeRF(fifo int) mmio.StoreHook {
	return func(old, written uint32) uint32 {
		n.mu.Lock()
		defer n.mu.Unlock()

		rf := old &^ (written & (regs.FULL | regs.FOVR))
		if written&regs.RFOM != 0 && len(n.fifos[fifo]) > 0 {
			n.fifos[fifo] = n.fifos[fifo][1:]
			n.showHead(fifo)
		}
		return rf&^(regs.FMPMask<<regs.FMPShift) | uint32(len(n.fifos[fifo]))<<regs.FMPShift
	}
}

func (n *Node) storeFilterConfig(old, written uint32) uint32 {
	if n.bank.Peek(regs.FMR)&regs.FINIT == 0 {
		return old
	}
	return written
}

func (n *Node) storeFilterBank(i int) mmio.StoreHook {
	return func(old, written uint32) uint32 {
		if n.bank.Peek(regs.FMR)&regs.FINIT == 0 && n.bank.Peek(regs.FA1R)&(1<<i) != 0 {
			return old
		}
		return written
	}
}

// showHead copies the head of fifo into its output mailbox. Called with n.mu
// held.
func (n *Node) showHead(fifo int) {
	if len(n.fifos[fifo]) == 0 {
		return
	}
	head := n.fifos[fifo][0]
	base := regs.RI(fifo)
	n.bank.Poke(base+regs.MailboxID, head.id)
	n.bank.Poke(base+regs.MailboxLength, head.length)
	n.bank.Poke(base+regs.MailboxLow, head.low)
	n.bank.Poke(base+regs.MailboxHigh, head.high)
}

// online reports whether the node takes part in bus traffic. Called with
// n.mu held.
func (n *Node) online() bool {
	return n.bank.Peek(regs.MSR)&(regs.INAK|regs.SLAK) == 0
}

// transmit empties every requested mailbox in transmit priority order and
// returns the frames sent. The driver's status register stores are held off
// until the mailboxes are updated.
func (n *Node) transmit() []rawFrame {
	var frames []rawFrame
	n.bank.Exclusive(func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		frames = n.sendRequested()
	})
	return frames
}

// sendRequested does the work of transmit. Called with n.mu held.
func (n *Node) sendRequested() []rawFrame {
	if !n.online() {
		return nil
	}

	chronological := n.bank.Peek(regs.MCR)&regs.TXFP != 0

	// Priority keys carry the mailbox number in the low byte so equal
	// priorities resolve to the lower mailbox.
	var keys []uint64
	for mb, seq := range n.requested {
		if seq == 0 {
			continue
		}
		prio := uint64(seq)
		if !chronological {
			prio = uint64(arbitrationID(n.bank.Peek(regs.TI(mb) + regs.MailboxID)))
		}
		keys = append(keys, prio<<8|uint64(mb))
	}
	slices.Sort(keys)

	frames := make([]rawFrame, 0, len(keys))
	for _, key := range keys {
		mb := int(key & 0xFF)
		base := regs.TI(mb)
		f := rawFrame{
			id:     arbitrationID(n.bank.Peek(base + regs.MailboxID)),
			length: n.bank.Peek(base+regs.MailboxLength) & regs.DLCMask,
			low:    n.bank.Peek(base + regs.MailboxLow),
			high:   n.bank.Peek(base + regs.MailboxHigh),
		}
		frames = append(frames, f)

		n.requested[mb] = 0
		n.bank.Update(base+regs.MailboxID, func(v uint32) uint32 { return v &^ regs.TXRQ })
		n.bank.Update(regs.TSR, func(tsr uint32) uint32 {
			tsr &^= regs.MailboxBits(regs.ALST0|regs.TERR0, mb)
			return tsr | regs.MailboxBits(regs.RQCP0|regs.TXOK0, mb) | regs.TME(mb)
		})
		n.metrics.transmitted(n.name)
		n.log.Debug("can_tx", "mailbox", mb, "frame", decode(f))
	}
	return frames
}

// arbitrationID strips the transmit request bit and, for standard frames,
// the extended identifier bits that are not sent on the bus.
func arbitrationID(id uint32) uint32 {
	if id&regs.IDE != 0 {
		return id &^ regs.TXRQ
	}
	return id & (regs.STIDMask<<regs.STIDShift | regs.RTR)
}

// receive offers f to the node's filters and stores it when accepted.
func (n *Node) receive(f rawFrame) bool {
	var stored bool
	n.bank.Exclusive(func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		stored = n.accept(f)
	})
	return stored
}

// accept does the work of receive. Called with n.mu held.
func (n *Node) accept(f rawFrame) bool {
	switch {
	case !n.online():
		n.metrics.rejected(n.name, ReasonOffline)
		return false
	case n.bank.Peek(regs.FMR)&regs.FINIT != 0:
		n.metrics.rejected(n.name, ReasonFilterInit)
		return false
	}

	index, fifo, ok := n.match(f.id)
	if !ok {
		n.metrics.rejected(n.name, ReasonNoMatch)
		n.log.Debug("can_rx_reject", "frame", decode(f))
		return false
	}
	f.length = f.length&regs.DLCMask | uint32(index)<<regs.FMIShift
	label := strconv.Itoa(fifo)

	q := n.fifos[fifo]
	stored := true
	if len(q) == regs.FIFODepth {
		n.bank.Update(regs.RF(fifo), func(rf uint32) uint32 { return rf | regs.FOVR })
		n.metrics.overrun(n.name, label)
		if n.bank.Peek(regs.MCR)&regs.RFLM != 0 {
			stored = false
		} else {
			q[len(q)-1] = f
		}
	} else {
		q = append(q, f)
	}
	n.fifos[fifo] = q

	count := uint32(len(q))
	n.bank.Update(regs.RF(fifo), func(rf uint32) uint32 {
		rf = rf&^(regs.FMPMask<<regs.FMPShift) | count<<regs.FMPShift
		if count == regs.FIFODepth {
			rf |= regs.FULL
		}
		return rf
	})
	n.showHead(fifo)

	if stored {
		n.metrics.received(n.name, label)
		n.log.Debug("can_rx", "fifo", fifo, "filter", index, "frame", decode(f))
	}
	return stored
}

// match runs the 32-bit filter bank over an identifier register value. List
// filters take precedence over mask filters, lower indexes over higher ones.
// Called with n.mu held.
func (n *Node) match(id uint32) (index int, fifo int, ok bool) {
	active := n.bank.Peek(regs.FA1R)
	list := n.bank.Peek(regs.FM1R)
	scale := n.bank.Peek(regs.FS1R)
	assign := n.bank.Peek(regs.FFA1R)

	maskMatch := -1
	for i := 0; i < regs.NumFilters; i++ {
		bit := uint32(1) << i
		if active&bit == 0 || scale&bit == 0 {
			continue
		}
		fr1 := n.bank.Peek(regs.Filter(i) + regs.FR1)
		fr2 := n.bank.Peek(regs.Filter(i) + regs.FR2)
		if list&bit != 0 {
			if id == fr1 || id == fr2 {
				return i, fifoOf(assign, bit), true
			}
		} else if maskMatch < 0 && (id^fr1)&fr2 == 0 {
			maskMatch = i
		}
	}
	if maskMatch < 0 {
		return 0, 0, false
	}
	return maskMatch, fifoOf(assign, uint32(1)<<maskMatch), true
}

func fifoOf(assign, bit uint32) int {
	if assign&bit != 0 {
		return 1
	}
	return 0
}

// Tick transmits the node's pending mailboxes. In loopback mode the frames
// are received back by the node itself; otherwise they are lost. Tick
// returns the number of frames transmitted.
func (n *Node) Tick() int {
	frames := n.transmit()
	if n.loopback() {
		for _, f := range frames {
			n.receive(f)
		}
	}
	return len(frames)
}

func (n *Node) loopback() bool {
	return n.bank.Peek(regs.BTR)&regs.LBKM != 0
}

func (n *Node) silent() bool {
	return n.bank.Peek(regs.BTR)&regs.SILM != 0
}

// Inject offers frame to the node as if it arrived from the bus and reports
// whether it was stored in a FIFO.
func (n *Node) Inject(frame can.Frame) bool {
	return n.receive(encode(frame))
}

// Pending returns the number of frames held in fifo.
func (n *Node) Pending(fifo can.FIFO) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if int(fifo) >= regs.NumFIFOs {
		return 0
	}
	return len(n.fifos[fifo])
}

// SetErrorStatus sets the error status register, for exercising error
// reporting.
func (n *Node) SetErrorStatus(esr uint32) {
	n.bank.Exclusive(func() { n.bank.Poke(regs.ESR, esr) })
}

func encode(f can.Frame) rawFrame {
	return rawFrame{
		id:     can.FilterID(f.ID, f.Extended, f.RTR),
		length: uint32(f.Len) & regs.DLCMask,
		low:    binary.LittleEndian.Uint32(f.Data[0:4]),
		high:   binary.LittleEndian.Uint32(f.Data[4:8]),
	}
}

func decode(r rawFrame) can.Frame {
	f := can.Frame{
		Extended:    r.id&regs.IDE != 0,
		RTR:         r.id&regs.RTR != 0,
		Len:         uint8(r.length & regs.DLCMask),
		FilterIndex: uint8(r.length >> regs.FMIShift & regs.FMIMask),
	}
	if f.Extended {
		f.ID = r.id >> regs.EXIDShift & regs.EXIDMask
	} else {
		f.ID = r.id >> regs.STIDShift & regs.STIDMask
	}
	binary.LittleEndian.PutUint32(f.Data[0:4], r.low)
	binary.LittleEndian.PutUint32(f.Data[4:8], r.high)
	return f
}
