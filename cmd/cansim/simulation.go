package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"omibyte.io/bxcan/peripheral/can"
	"omibyte.io/bxcan/peripheral/can/cansim"
	"omibyte.io/bxcan/targets"
)

type simNode struct {
	name  string
	node  *cansim.Node
	can   *can.CAN
	queue []can.Frame
}

// simulation runs a scenario on a cansim network through the driver.
type simulation struct {
	nw    *cansim.Network
	nodes []*simNode
	out   io.Writer
	log   *slog.Logger

	sent     int
	received int
}

func newSimulation(s *Scenario, metrics *cansim.Metrics, log *slog.Logger, out io.Writer) (*simulation, error) {
	sim := &simulation{
		nw:  cansim.NewNetwork(metrics, log),
		out: out,
		log: log,
	}

	for _, spec := range s.Nodes {
		n := sim.nw.Attach(cansim.Options{Name: spec.Name, AckDelay: spec.AckDelay})
		c, err := can.NewWithBus(n.Bank())
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", spec.Name, err)
		}

		config, err := spec.config()
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", spec.Name, err)
		}
		if err := c.Open(config); err != nil {
			return nil, fmt.Errorf("node %s: open: %w", spec.Name, err)
		}
		for _, fs := range spec.Filters {
			f, err := fs.filter()
			if err != nil {
				return nil, fmt.Errorf("node %s: filter %d: %w", spec.Name, fs.Index, err)
			}
			c.FilterInit(f)
		}

		attrs := []any{"node", spec.Name, "timing", config.Timing}
		if spec.Target != "" {
			target, err := targets.All().Find(spec.Target)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", spec.Name, err)
			}
			attrs = append(attrs, "series", target.Series, "bitrate", target.BitRate(config.Timing))
		}
		log.Info("node_open", attrs...)

		sim.nodes = append(sim.nodes, &simNode{name: spec.Name, node: n, can: c})
	}

	for _, fs := range s.Frames {
		f, err := fs.frame()
		if err != nil {
			return nil, err
		}
		for _, n := range sim.nodes {
			if n.name == fs.From {
				n.queue = append(n.queue, f)
			}
		}
	}
	return sim, nil
}

// run steps the bus until every queued frame is sent and nothing moves, or
// until limit steps. It returns the number of steps taken.
func (s *simulation) run(limit int) int {
	tick := 0
	for tick < limit {
		tick++
		for _, n := range s.nodes {
			for len(n.queue) > 0 && n.can.Write(n.queue[0]) {
				n.queue = n.queue[1:]
			}
		}
		sent := s.nw.Tick()
		s.sent += sent
		s.drain(tick)
		if sent == 0 && s.queued() == 0 {
			break
		}
	}
	if q := s.queued(); q > 0 {
		s.log.Warn("frames_unsent", "count", q, "ticks", tick)
	}
	return tick
}

func (s *simulation) queued() int {
	n := 0
	for _, node := range s.nodes {
		n += len(node.queue)
	}
	return n
}

func (s *simulation) drain(tick int) {
	for _, n := range s.nodes {
		for n.can.ReadPending() {
			f := n.can.Read()
			s.received++
			fmt.Fprintf(s.out, "%4d  %-8s fifo%d filter%-2d %s\n", tick, n.name, f.FIFO, f.FilterIndex, formatFrame(f))
		}
	}
}

// formatFrame renders f in the compact cansend notation: 3 or 8 hex digits of
// identifier, '#', then the payload or R and the length for remote frames.
func formatFrame(f can.Frame) string {
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X#", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X#", f.ID)
	}
	if f.RTR {
		fmt.Fprintf(&b, "R%d", f.Len)
		return b.String()
	}
	fmt.Fprintf(&b, "%X", f.Payload())
	return b.String()
}
