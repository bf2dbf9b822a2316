package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"omibyte.io/bxcan/internal/logging"
	"omibyte.io/bxcan/peripheral/can"
	"omibyte.io/bxcan/peripheral/can/cansim"
)

func quietLogger() *slog.Logger {
	return logging.New("text", slog.LevelError, &bytes.Buffer{})
}

func TestSimulationRun(t *testing.T) {
	s, err := LoadScenario("testdata/diagnostics.yaml")
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	sim, err := newSimulation(s, cansim.NewMetrics(prometheus.NewRegistry()), quietLogger(), &out)
	if err != nil {
		t.Fatal(err)
	}
	if ticks := sim.run(s.Ticks); ticks != 2 {
		t.Fatalf("%d ticks, want 2", ticks)
	}
	if sim.sent != 4 || sim.received != 4 || sim.queued() != 0 {
		t.Fatalf("sent %d received %d queued %d", sim.sent, sim.received, sim.queued())
	}

	// Lower identifiers win arbitration; the fuller FIFO, then FIFO 0, is
	// read first.
	want := []struct {
		node, fifo, frame string
	}{
		{"ecu", "fifo0 filter0", "7DF#R8"},
		{"ecu", "fifo0 filter0", "7E0#021003"},
		{"tester", "fifo0 filter1", "18DAF110#DEADBEEF"},
		{"tester", "fifo1 filter0", "7E8#065003003201F4"},
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(want) {
		t.Fatalf("output:\n%s", out.String())
	}
	for i, w := range want {
		fields := strings.Fields(lines[i])
		got := strings.Join(fields[2:4], " ")
		if fields[0] != "1" || fields[1] != w.node || got != w.fifo || fields[4] != w.frame {
			t.Errorf("line %d: %q, want node %s %s %s", i, lines[i], w.node, w.fifo, w.frame)
		}
	}
}

func TestSimulationTickLimit(t *testing.T) {
	s, err := ParseScenario([]byte(`
nodes:
  - name: a
  - name: b
    filters:
      - index: 0
frames:
  - {from: a, id: 1}
  - {from: a, id: 2}
  - {from: a, id: 3}
  - {from: a, id: 4}
  - {from: a, id: 5}
`))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	sim, err := newSimulation(s, nil, quietLogger(), &out)
	if err != nil {
		t.Fatal(err)
	}
	if ticks := sim.run(1); ticks != 1 {
		t.Fatalf("%d ticks", ticks)
	}
	if sim.sent != can.NumMailboxes || sim.queued() != 2 {
		t.Fatalf("sent %d queued %d after one tick", sim.sent, sim.queued())
	}

	sim.run(10)
	if sim.sent != 5 || sim.received != 5 {
		t.Fatalf("sent %d received %d", sim.sent, sim.received)
	}
}

func TestSimulationOpenFailure(t *testing.T) {
	s := &Scenario{Nodes: []NodeSpec{{Name: "a", Baud: "9k"}}}
	if _, err := newSimulation(s, nil, quietLogger(), &bytes.Buffer{}); err == nil {
		t.Fatal("invalid node opened")
	}
}

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		frame can.Frame
		want  string
	}{
		{can.Frame{ID: 0x123, Len: 2, Data: [8]byte{0x01, 0xAB}}, "123#01AB"},
		{can.Frame{ID: 0x5}, "005#"},
		{can.Frame{ID: 0x1ABCDEF, Extended: true, Len: 1, Data: [8]byte{0xFF}}, "01ABCDEF#FF"},
		{can.Frame{ID: 0x7DF, RTR: true, Len: 3}, "7DF#R3"},
	}
	for _, tc := range tests {
		if got := formatFrame(tc.frame); got != tc.want {
			t.Errorf("%+v: %q, want %q", tc.frame, got, tc.want)
		}
	}
}

func TestPrintTargets(t *testing.T) {
	var out bytes.Buffer
	if err := printTargets(&out, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "SERIES") {
		t.Fatalf("output %q", out.String())
	}
}
