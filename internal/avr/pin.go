package avr

import (
	"errors"
	"fmt"
	"strings"
)

// Pin names one GPIO line, e.g. D6.
type Pin struct {
	Port byte
	Bit  uint8
}

func (p Pin) String() string { return fmt.Sprintf("%c%d", p.Port, p.Bit) }

var (
	ErrPinSyntax = errors.New("avr: pin must look like D6")
	ErrNoSignal  = errors.New("avr: no such signal")
)

// ParsePin parses "<port letter><bit>". The letter is case-insensitive.
func ParsePin(s string) (Pin, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2 {
		return Pin{}, fmt.Errorf("%w: %q", ErrPinSyntax, s)
	}
	port := s[0]
	if port >= 'a' && port <= 'z' {
		port -= 'a' - 'A'
	}
	if port < 'A' || port > 'Z' || s[1] < '0' || s[1] > '7' {
		return Pin{}, fmt.Errorf("%w: %q", ErrPinSyntax, s)
	}
	return Pin{Port: port, Bit: s[1] - '0'}, nil
}

// PinSignal returns the level signal of pin p.
func (m *Machine) PinSignal(p Pin) (*Signal, error) {
	port, ok := m.Port(p.Port)
	if !ok || p.Bit > 7 {
		return nil, fmt.Errorf("%w: %v on %s", ErrNoSignal, p, m.mcu.Name)
	}
	return port.Pin[p.Bit], nil
}
