package cansim

import (
	"log/slog"
	"sync"

	"golang.org/x/exp/slices"

	"omibyte.io/bxcan/internal/logging"
)

// Network is a bus joining several nodes.
type Network struct {
	metrics *Metrics
	log     *slog.Logger

	mu    sync.Mutex
	nodes []*Node
}

// NewNetwork returns an empty bus. Nodes attached to it share metrics; a nil
// logger selects the process-wide one.
func NewNetwork(metrics *Metrics, log *slog.Logger) *Network {
	if log == nil {
		log = logging.L()
	}
	return &Network{metrics: metrics, log: log}
}

// Attach creates a node on the bus. Options.Metrics and Options.Logger
// default to the network's.
func (nw *Network) Attach(opts Options) *Node {
	if opts.Metrics == nil {
		opts.Metrics = nw.metrics
	}
	if opts.Logger == nil {
		opts.Logger = nw.log
	}
	n := NewNode(opts)

	nw.mu.Lock()
	nw.nodes = append(nw.nodes, n)
	nw.mu.Unlock()
	return n
}

// Detach removes n from the bus.
func (nw *Network) Detach(n *Node) {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	if i := slices.Index(nw.nodes, n); i >= 0 {
		nw.nodes = slices.Delete(nw.nodes, i, i+1)
	}
}

// Node returns the attached node called name.
func (nw *Network) Node(name string) (*Node, bool) {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	i := slices.IndexFunc(nw.nodes, func(n *Node) bool { return n.name == name })
	if i < 0 {
		return nil, false
	}
	return nw.nodes[i], true
}

// Nodes returns the attached nodes in attachment order.
func (nw *Network) Nodes() []*Node {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	return slices.Clone(nw.nodes)
}

// Tick lets every node transmit its pending mailboxes, in attachment order,
// and delivers each frame to every other node. A node in loopback mode also
// receives its own frames. A silent node's frames never reach other nodes, so
// they reach no one unless loopback is on too. Tick returns the number of
// frames transmitted.
func (nw *Network) Tick() int {
	nodes := nw.Nodes()

	sent := 0
	for _, src := range nodes {
		frames := src.transmit()
		sent += len(frames)
		loopback, silent := src.loopback(), src.silent()
		for _, f := range frames {
			if loopback {
				src.receive(f)
			}
			if silent {
				continue
			}
			for _, dst := range nodes {
				if dst != src {
					dst.receive(f)
				}
			}
		}
	}
	return sent
}

// Run ticks until a tick transmits nothing or limit ticks have run, and
// returns the number of frames transmitted.
func (nw *Network) Run(limit int) int {
	total := 0
	for i := 0; i < limit; i++ {
		n := nw.Tick()
		if n == 0 {
			break
		}
		total += n
	}
	return total
}
