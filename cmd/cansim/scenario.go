package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/bxcan/peripheral/can"
	"omibyte.io/bxcan/targets"
)

const defaultTicks = 100

// Scenario is a bus of simulated controllers and the frames they send.
type Scenario struct {
	// Upper bound on simulation steps. Defaults to 100.
	Ticks  int         `yaml:"ticks"`
	Nodes  []NodeSpec  `yaml:"nodes"`
	Frames []FrameSpec `yaml:"frames"`
}

type NodeSpec struct {
	Name string `yaml:"name"`
	// Chip or series from the targets table. Optional.
	Target string `yaml:"target"`
	// One of 125k, 250k, 500k, 1M. Mutually exclusive with Timing.
	Baud   string      `yaml:"baud"`
	Timing *TimingSpec `yaml:"timing"`

	TransmitFIFOPriority bool `yaml:"txfp"`
	ReceiveFIFOLocked    bool `yaml:"rflm"`
	NoAutoRetransmit     bool `yaml:"nart"`
	AutoWakeup           bool `yaml:"awum"`
	AutoBusOff           bool `yaml:"abom"`
	TimeTriggered        bool `yaml:"ttcm"`
	Loopback             bool `yaml:"loopback"`
	Silent               bool `yaml:"silent"`

	// Status reads before the simulated controller acknowledges a mode
	// change.
	AckDelay int          `yaml:"ackDelay"`
	Filters  []FilterSpec `yaml:"filters"`
}

type TimingSpec struct {
	Prescaler    uint16 `yaml:"prescaler"`
	BeforeSample uint8  `yaml:"bs1"`
	AfterSample  uint8  `yaml:"bs2"`
	JumpWidth    uint8  `yaml:"sjw"`
}

type FilterSpec struct {
	Index uint8 `yaml:"index"`
	// mask or list. Defaults to mask.
	Mode     string `yaml:"mode"`
	FIFO     uint8  `yaml:"fifo"`
	Inactive bool   `yaml:"inactive"`

	// Identifier the filter value is built from, unless Value is set.
	ID       uint32  `yaml:"id"`
	Extended bool    `yaml:"extended"`
	RTR      bool    `yaml:"rtr"`
	Value    *uint32 `yaml:"value"`
}

type FrameSpec struct {
	From     string `yaml:"from"`
	ID       uint32 `yaml:"id"`
	Extended bool   `yaml:"extended"`
	RTR      bool   `yaml:"rtr"`
	// Hex payload, spaces allowed.
	Data string `yaml:"data"`
	// Length of a remote frame, or of a data frame when it differs from
	// the payload.
	Len *uint8 `yaml:"len"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScenario(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario. Unknown keys are errors.
func ParseScenario(raw []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if s.Ticks == 0 {
		s.Ticks = defaultTicks
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	var errs []error
	if s.Ticks < 0 {
		errs = append(errs, fmt.Errorf("ticks: %d is negative", s.Ticks))
	}
	if len(s.Nodes) == 0 {
		errs = append(errs, errors.New("no nodes"))
	}

	var names []string
	for i, n := range s.Nodes {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node %d: no name", i))
			continue
		}
		if slices.Contains(names, n.Name) {
			errs = append(errs, fmt.Errorf("node %s: duplicate name", n.Name))
		}
		names = append(names, n.Name)
		if err := n.validate(); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.Name, err))
		}
	}

	for i, f := range s.Frames {
		if !slices.Contains(names, f.From) {
			errs = append(errs, fmt.Errorf("frame %d: unknown node %q", i, f.From))
		}
		if _, err := f.frame(); err != nil {
			errs = append(errs, fmt.Errorf("frame %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (n NodeSpec) validate() error {
	var errs []error
	if n.Target != "" {
		if _, err := targets.All().Find(n.Target); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := n.config(); err != nil {
		errs = append(errs, err)
	}
	if n.AckDelay < 0 {
		errs = append(errs, fmt.Errorf("ackDelay: %d is negative", n.AckDelay))
	}
	var indexes []uint8
	for _, f := range n.Filters {
		if slices.Contains(indexes, f.Index) {
			errs = append(errs, fmt.Errorf("filter %d: programmed twice", f.Index))
		}
		indexes = append(indexes, f.Index)
		if _, err := f.filter(); err != nil {
			errs = append(errs, fmt.Errorf("filter %d: %w", f.Index, err))
		}
	}
	return errors.Join(errs...)
}

func parseBaud(s string) (can.BaudRate, error) {
	for _, rate := range []can.BaudRate{can.Baud125k, can.Baud250k, can.Baud500k, can.Baud1M} {
		if strings.EqualFold(s, rate.String()) {
			return rate, nil
		}
	}
	return 0, fmt.Errorf("unsupported baud rate %q", s)
}

// config returns the driver configuration of the node. Without baud or
// timing the default timing applies.
func (n NodeSpec) config() (can.Config, error) {
	config := can.Config{
		TransmitFIFOPriority: n.TransmitFIFOPriority,
		ReceiveFIFOLocked:    n.ReceiveFIFOLocked,
		NoAutoRetransmit:     n.NoAutoRetransmit,
		AutoWakeup:           n.AutoWakeup,
		AutoBusOff:           n.AutoBusOff,
		TimeTriggered:        n.TimeTriggered,
		Loopback:             n.Loopback,
		Silent:               n.Silent,
		Timing:               can.DefaultTiming,
	}

	switch {
	case n.Baud != "" && n.Timing != nil:
		return can.Config{}, errors.New("baud and timing are mutually exclusive")
	case n.Baud != "":
		rate, err := parseBaud(n.Baud)
		if err != nil {
			return can.Config{}, err
		}
		config.Timing = can.TimingFor(rate)
	case n.Timing != nil:
		t := n.Timing
		if t.Prescaler > 0x3FF || t.BeforeSample > 0xF || t.AfterSample > 0x7 || t.JumpWidth > 0x3 {
			return can.Config{}, fmt.Errorf("timing %+v exceeds its register fields", *t)
		}
		config.Timing = can.BitTiming{
			Prescaler:    t.Prescaler,
			BeforeSample: t.BeforeSample,
			AfterSample:  t.AfterSample,
			JumpWidth:    t.JumpWidth,
		}
	}
	return config, nil
}

func (f FilterSpec) filter() (can.Filter, error) {
	if int(f.Index) >= can.NumFilters {
		return can.Filter{}, fmt.Errorf("index above %d", can.NumFilters-1)
	}
	if f.FIFO >= can.NumFIFOs {
		return can.Filter{}, fmt.Errorf("fifo %d does not exist", f.FIFO)
	}

	filter := can.Filter{
		Index:  f.Index,
		FIFO:   can.FIFO(f.FIFO),
		Active: !f.Inactive,
	}
	switch strings.ToLower(f.Mode) {
	case "", "mask":
		filter.Mode = can.MaskMode
	case "list":
		filter.Mode = can.ListMode
	default:
		return can.Filter{}, fmt.Errorf("unknown mode %q", f.Mode)
	}

	if f.Value != nil {
		filter.Value = *f.Value
	} else {
		frame := can.Frame{ID: f.ID, Extended: f.Extended}
		if err := frame.Validate(); err != nil {
			return can.Filter{}, err
		}
		filter.Value = can.FilterID(f.ID, f.Extended, f.RTR)
	}
	return filter, nil
}

// frame returns the frame to send. Identifiers above 0x7FF are always
// extended.
func (f FrameSpec) frame() (can.Frame, error) {
	data, err := hex.DecodeString(strings.ReplaceAll(f.Data, " ", ""))
	if err != nil {
		return can.Frame{}, fmt.Errorf("data: %w", err)
	}
	if len(data) > can.MaxDataLength {
		return can.Frame{}, can.ErrInvalidLength
	}

	frame := can.Frame{
		ID:       f.ID,
		Extended: f.Extended || f.ID > can.MaxStandardID,
		RTR:      f.RTR,
		Len:      uint8(len(data)),
	}
	copy(frame.Data[:], data)
	if f.Len != nil {
		frame.Len = *f.Len
	}
	return frame, frame.Validate()
}
