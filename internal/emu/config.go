package emu

import (
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/config"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
)

// DefaultChipSelect is where the FX cartridge chip select sits on an Arduboy
// FX. Auto-detection can move it.
var DefaultChipSelect = avr.Pin{Port: 'D', Bit: 1}

// Config contains settings that affect emulation behavior.
type Config struct {
	MCU        string        // part name handed to avr.MakeMCUByName
	Dev        config.Dev    // developer overrides
	Thresholds fx.Thresholds // chip select detection tuning
	ChipSelect avr.Pin       // cartridge chip select unless overridden
	// builds the machine on first use; tests swap in a scripted core
	NewMachine func(mcu string) (*avr.Machine, error)
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.MCU == "" {
		c.MCU = avr.ATmega32U4.Name
	}
	if c.Thresholds == (fx.Thresholds{}) {
		c.Thresholds = fx.DefaultThresholds
	}
	if c.ChipSelect == (avr.Pin{}) {
		c.ChipSelect = DefaultChipSelect
	}
	if c.NewMachine == nil {
		c.NewMachine = avr.MakeMCUByName
	}
}
