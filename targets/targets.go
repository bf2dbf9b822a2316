package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/bxcan/peripheral/can"
	"omibyte.io/bxcan/peripheral/nvic"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var (
	ErrSeriesNotFound     = errors.New("series not found")
	ErrChipNotFound       = errors.New("chip not found")
	ErrControllerNotFound = errors.New("controller not found")
)

func All() Targets {
	return targets
}

type Targets []TargetInfo
type TargetInfo struct {
	Series       string       `yaml:"series"`
	Chips        []string     `yaml:"chips"`
	Cpu          string       `yaml:"cpu"`
	Architecture string       `yaml:"architecture"`
	ClockHz      uint32       `yaml:"clockHz"`
	Controllers  []Controller `yaml:"controllers"`
}

// Controller is one CAN controller instance of a chip.
type Controller struct {
	Name string   `yaml:"name"`
	Base uintptr  `yaml:"base"`
	IRQ  IRQLines `yaml:"irq"`
}

// IRQLines are the interrupt controller lines a controller raises. Several
// may be the same line.
type IRQLines struct {
	TX  uint16 `yaml:"tx"`
	RX0 uint16 `yaml:"rx0"`
	RX1 uint16 `yaml:"rx1"`
	SCE uint16 `yaml:"sce"`
}

func (t Targets) FindBySeries(name string) (TargetInfo, error) {
	for _, target := range t {
		if target.Series == strings.ToLower(name) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrSeriesNotFound, name)
}

func (t Targets) FindByChip(name string) (TargetInfo, error) {
	for _, target := range t {
		if slices.Contains(target.Chips, strings.ToLower(name)) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrChipNotFound, name)
}

// Find looks name up as a chip first and as a series second.
func (t Targets) Find(name string) (TargetInfo, error) {
	target, err := t.FindByChip(name)
	if err == nil {
		return target, nil
	}
	target, serr := t.FindBySeries(name)
	if serr == nil {
		return target, nil
	}
	return TargetInfo{}, errors.Join(err, serr)
}

// Controller returns the controller called name, or the first one when name
// is empty.
func (t TargetInfo) Controller(name string) (Controller, error) {
	if name == "" && len(t.Controllers) > 0 {
		return t.Controllers[0], nil
	}
	i := slices.IndexFunc(t.Controllers, func(c Controller) bool { return c.Name == strings.ToLower(name) })
	if i < 0 {
		return Controller{}, fmt.Errorf("%w: %s on %s", ErrControllerNotFound, name, t.Series)
	}
	return t.Controllers[i], nil
}

// BitRate returns the bus speed timing produces at the chip's peripheral
// clock.
func (t TargetInfo) BitRate(timing can.BitTiming) uint32 {
	return timing.BitRate(t.ClockHz)
}

// Lines returns the distinct interrupt lines of c on n, receive lines first,
// all at the given priority.
func (c Controller) Lines(n *nvic.NVIC, priority, subPriority uint8) []can.Line {
	var irqs []uint16
	for _, irq := range []uint16{c.IRQ.RX0, c.IRQ.RX1, c.IRQ.TX, c.IRQ.SCE} {
		if !slices.Contains(irqs, irq) {
			irqs = append(irqs, irq)
		}
	}
	lines := make([]can.Line, len(irqs))
	for i, irq := range irqs {
		lines[i] = can.Line{
			Interrupt:   n.Line(irq),
			Priority:    priority,
			SubPriority: subPriority,
		}
	}
	return lines
}

// Open maps the controller at its base address and returns its handle.
func (c Controller) Open() (*can.CAN, error) {
	return can.New(c.Base)
}

func init() {
	var t struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(rawTargets, &t); err != nil {
		panic(err)
	}

	targets = t.Elements
}
