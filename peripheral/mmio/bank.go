package mmio

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Op identifies the kind of a journaled access.
type Op uint8

const (
	OpLoad Op = iota
	OpStore
)

func (o Op) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	default:
		return "unknown"
	}
}

// Access is one journaled register access. For stores Value is the value the
// caller wrote, before any store hook was applied.
type Access struct {
	Op     Op
	Offset uintptr
	Value  uint32
}

// LoadHook computes the value returned for a load given the stored value.
type LoadHook func(stored uint32) uint32

// StoreHook computes the value retained for a store given the previous and
// written values.
type StoreHook func(old, written uint32) uint32

// Bank is an in-memory register file implementing Bus. Hooks model hardware
// side effects; Peek and Poke give a backdoor that bypasses hooks and the
// journal. Hooks run without the bank lock held, so they may Peek, Poke and
// Update, but must not Load, Store or call Exclusive.
//
// A store reads the old value, runs its hook and commits the result as one
// step. Code that changes registers from outside a hook while a driver may be
// storing to them does so inside Exclusive, so neither change is lost.
type Bank struct {
	// step orders stores, hooked loads and Exclusive sections.
	step sync.Mutex

	mu      sync.Mutex
	words   map[uintptr]uint32
	onLoad  map[uintptr]LoadHook
	onStore map[uintptr]StoreHook
	journal []Access
}

// NewBank returns an empty register bank. Every register reads as zero until
// written.
func NewBank() *Bank {
	return &Bank{
		words:   make(map[uintptr]uint32),
		onLoad:  make(map[uintptr]LoadHook),
		onStore: make(map[uintptr]StoreHook),
	}
}

func (b *Bank) Load(offset uintptr) uint32 {
	b.mu.Lock()
	hook := b.onLoad[offset]
	if hook == nil {
		v := b.words[offset]
		b.journal = append(b.journal, Access{Op: OpLoad, Offset: offset, Value: v})
		b.mu.Unlock()
		return v
	}
	b.mu.Unlock()

	b.step.Lock()
	defer b.step.Unlock()

	b.mu.Lock()
	v := b.words[offset]
	b.journal = append(b.journal, Access{Op: OpLoad, Offset: offset, Value: v})
	b.mu.Unlock()
	return hook(v)
}

func (b *Bank) Store(offset uintptr, value uint32) {
	b.step.Lock()
	defer b.step.Unlock()

	b.mu.Lock()
	old := b.words[offset]
	hook := b.onStore[offset]
	b.journal = append(b.journal, Access{Op: OpStore, Offset: offset, Value: value})
	b.mu.Unlock()

	v := value
	if hook != nil {
		v = hook(old, value)
	}

	b.mu.Lock()
	b.words[offset] = v
	b.mu.Unlock()
}

// Exclusive runs fn with every store and hooked load held off. fn may Peek,
// Poke and Update but must not Load or Store.
func (b *Bank) Exclusive(fn func()) {
	b.step.Lock()
	defer b.step.Unlock()
	fn()
}

// OnLoad installs hook for loads from offset, replacing any previous one.
func (b *Bank) OnLoad(offset uintptr, hook LoadHook) {
	b.mu.Lock()
	b.onLoad[offset] = hook
	b.mu.Unlock()
}

// OnStore installs hook for stores to offset, replacing any previous one.
func (b *Bank) OnStore(offset uintptr, hook StoreHook) {
	b.mu.Lock()
	b.onStore[offset] = hook
	b.mu.Unlock()
}

// Peek returns the stored value at offset.
func (b *Bank) Peek(offset uintptr) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.words[offset]
}

// Poke sets the stored value at offset.
func (b *Bank) Poke(offset uintptr, value uint32) {
	b.mu.Lock()
	b.words[offset] = value
	b.mu.Unlock()
}

// Update applies fn to the stored value at offset atomically with respect to
// other Bank operations.
func (b *Bank) Update(offset uintptr, fn func(uint32) uint32) {
	b.mu.Lock()
	b.words[offset] = fn(b.words[offset])
	b.mu.Unlock()
}

// Journal returns a copy of every access since the last ResetJournal.
func (b *Bank) Journal() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.journal)
}

// Stores returns the journaled stores.
func (b *Bank) Stores() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	var stores []Access
	for _, a := range b.journal {
		if a.Op == OpStore {
			stores = append(stores, a)
		}
	}
	return stores
}

// Loads returns how many times offset has been loaded.
func (b *Bank) Loads(offset uintptr) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, a := range b.journal {
		if a.Op == OpLoad && a.Offset == offset {
			n++
		}
	}
	return n
}

// ResetJournal discards the access journal.
func (b *Bank) ResetJournal() {
	b.mu.Lock()
	b.journal = nil
	b.mu.Unlock()
}

// Offsets returns the offsets of every register holding a value, in
// ascending order.
func (b *Bank) Offsets() []uintptr {
	b.mu.Lock()
	offsets := maps.Keys(b.words)
	b.mu.Unlock()
	slices.Sort(offsets)
	return offsets
}
