// Package avrtest provides a scripted stand-in for an instruction-set core so
// that the peripheral plumbing can be exercised without real AVR code.
package avrtest

import "github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"

// Op is one scripted step. It runs against the machine and costs Cycles.
type Op struct {
	Cycles int
	Do     func(m *avr.Machine)
}

// Script is an avr.Core that plays back a list of ops. Once the ops run out
// it either idles (Loop false, each Step costs IdleCycles) or starts over.
type Script struct {
	Ops        []Op
	Loop       bool
	IdleCycles int

	pc     int
	Resets int
	Steps  int
}

// Reset implements avr.Core.
func (s *Script) Reset(m *avr.Machine) {
	s.pc = 0
	s.Resets++
}

// Step implements avr.Core.
func (s *Script) Step(m *avr.Machine) int {
	s.Steps++
	if s.pc >= len(s.Ops) {
		if !s.Loop || len(s.Ops) == 0 {
			if s.IdleCycles > 0 {
				return s.IdleCycles
			}
			return 1
		}
		s.pc = 0
	}
	op := s.Ops[s.pc]
	s.pc++
	if op.Do != nil {
		op.Do(m)
	}
	return op.Cycles
}

// PortWrite returns an op storing v to PORTx.
func PortWrite(name byte, v uint8) Op {
	return Op{Cycles: 1, Do: func(m *avr.Machine) {
		if p, ok := m.Port(name); ok {
			p.WritePORT(v)
		}
	}}
}

// DDRWrite returns an op storing v to DDRx.
func DDRWrite(name byte, v uint8) Op {
	return Op{Cycles: 1, Do: func(m *avr.Machine) {
		if p, ok := m.Port(name); ok {
			p.WriteDDR(v)
		}
	}}
}

// Transmit returns an op sending b over SPI; got receives SPDR afterwards.
func Transmit(b uint8, got *[]byte) Op {
	return Op{Cycles: 17, Do: func(m *avr.Machine) {
		m.SPI().Transmit(b)
		if got != nil {
			*got = append(*got, m.SPI().Data())
		}
	}}
}

// Halt returns an op that moves the machine into state st.
func Halt(st avr.State) Op {
	return Op{Cycles: 1, Do: func(m *avr.Machine) { m.State = st }}
}
