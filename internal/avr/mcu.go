package avr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MCU describes a part: its clock, program memory and GPIO ports.
type MCU struct {
	Name      string
	Frequency uint32
	FlashSize int
	Ports     string
}

// ATmega32U4 is the Arduboy's MCU.
var ATmega32U4 = MCU{
	Name:      "atmega32u4",
	Frequency: 16_000_000,
	FlashSize: 32 * 1024,
	Ports:     "BCDEF",
}

var (
	ErrUnknownMCU = errors.New("avr: unknown mcu")
	ErrNoCore     = errors.New("avr: no core registered")
)

// CoreFactory builds a fresh core for one machine.
type CoreFactory func(mcu MCU) Core

var (
	parts = map[string]MCU{ATmega32U4.Name: ATmega32U4}
	cores = map[string]CoreFactory{}
)

// RegisterCore makes factory available to MakeMCUByName for the named part.
func RegisterCore(name string, factory CoreFactory) {
	cores[strings.ToLower(name)] = factory
}

// RegisterMCU adds or replaces a part description.
func RegisterMCU(mcu MCU) {
	parts[strings.ToLower(mcu.Name)] = mcu
}

// Cores lists the part names with a registered core.
func Cores() []string {
	var names []string
	for n := range cores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MakeMCUByName builds a machine for a known part with its registered core.
func MakeMCUByName(name string) (*Machine, error) {
	key := strings.ToLower(name)
	mcu, ok := parts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMCU, name)
	}
	factory, ok := cores[key]
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCore, name)
	}
	core := factory(mcu)
	if core == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCore, name)
	}
	return New(mcu, core), nil
}
