package peripheral

// Interrupt is one line of an interrupt controller.
type Interrupt interface {
	EnableIRQ()
	DisableIRQ()
	SetPriority(priority uint8, subPriority uint8)
}
