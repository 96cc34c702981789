package avr

import (
	"errors"
	"fmt"
)

// State is the run state of the simulated MCU.
type State int

const (
	Limbo State = iota
	Stopped
	Running
	Sleeping
	Done
	Crashed
)

func (s State) String() string {
	switch s {
	case Limbo:
		return "limbo"
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Done:
		return "done"
	case Crashed:
		return "crashed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Halted reports whether the core has stopped for good.
func (s State) Halted() bool { return s == Done || s == Crashed }

// Core is an instruction-set simulator. Step executes one instruction (or one
// sleep quantum) against the machine's memory and peripherals and returns the
// number of cycles it took. The core owns the transitions between Running,
// Sleeping, Done and Crashed.
type Core interface {
	Reset(m *Machine)
	Step(m *Machine) int
}

var ErrCodeRange = errors.New("avr: code outside program memory")

// Machine is the shell around a Core: program memory, cycle counter, run
// state and the peripheral models the rest of the emulator talks to.
type Machine struct {
	mcu  MCU
	core Core

	State     State
	Cycle     uint64
	Frequency uint32

	flash []byte
	ports []*Port
	spi   *SPI
}

// New builds a machine for mcu driven by core.
func New(mcu MCU, core Core) *Machine {
	m := &Machine{
		mcu:       mcu,
		core:      core,
		State:     Limbo,
		Frequency: mcu.Frequency,
		flash:     make([]byte, mcu.FlashSize),
		spi:       newSPI(),
	}
	for i := 0; i < len(mcu.Ports); i++ {
		m.ports = append(m.ports, newPort(mcu.Ports[i]))
	}
	m.ClearCode()
	return m
}

// MCU returns the descriptor the machine was built from.
func (m *Machine) MCU() MCU { return m.mcu }

// Core returns the instruction-set simulator.
func (m *Machine) Core() Core { return m.core }

// LoadCode copies data into program memory at addr.
func (m *Machine) LoadCode(data []byte, addr uint32) error {
	end := uint64(addr) + uint64(len(data))
	if end > uint64(len(m.flash)) {
		return fmt.Errorf("%w: %#x+%d > %#x", ErrCodeRange, addr, len(data), len(m.flash))
	}
	copy(m.flash[addr:], data)
	return nil
}

// ClearCode erases program memory to the unprogrammed value.
func (m *Machine) ClearCode() {
	for i := range m.flash {
		m.flash[i] = 0xFF
	}
}

// Flash exposes program memory to the core.
func (m *Machine) Flash() []byte { return m.flash }

// Port returns the GPIO port with the given letter.
func (m *Machine) Port(name byte) (*Port, bool) {
	for _, p := range m.ports {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Ports returns every GPIO port in declaration order.
func (m *Machine) Ports() []*Port { return m.ports }

// SPI returns the SPI peripheral.
func (m *Machine) SPI() *SPI { return m.spi }

// UsecToCycles converts microseconds to core cycles.
func (m *Machine) UsecToCycles(usec uint64) uint64 {
	return usec * uint64(m.Frequency) / 1_000_000
}

// Reset puts the peripherals into their power-on state, restarts the core and
// leaves the machine Running. The cycle counter keeps counting.
func (m *Machine) Reset() {
	for _, p := range m.ports {
		p.reset()
	}
	m.spi.reset()
	m.State = Running
	if m.core != nil {
		m.core.Reset(m)
	}
}

// Run advances the core by one step. It is a no-op unless the machine is
// Running or Sleeping; every step advances the cycle counter by at least one.
func (m *Machine) Run() State {
	if m.State != Running && m.State != Sleeping {
		return m.State
	}
	n := 1
	if m.core != nil {
		n = m.core.Step(m)
	}
	if n < 1 {
		n = 1
	}
	m.Cycle += uint64(n)
	return m.State
}
