package emu

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/oled"
)

var ErrNotAttached = errors.New("emu: board not attached")

// Buttons is the set of Arduboy buttons held down.
type Buttons uint8

const (
	ButtonUp Buttons = 1 << iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonA
	ButtonB
)

// buttonPins says where each button pulls a port input low.
var buttonPins = []struct {
	button Buttons
	pin    avr.Pin
}{
	{ButtonUp, avr.Pin{Port: 'F', Bit: 7}},
	{ButtonDown, avr.Pin{Port: 'F', Bit: 4}},
	{ButtonLeft, avr.Pin{Port: 'F', Bit: 5}},
	{ButtonRight, avr.Pin{Port: 'F', Bit: 6}},
	{ButtonA, avr.Pin{Port: 'E', Bit: 6}},
	{ButtonB, avr.Pin{Port: 'B', Bit: 4}},
}

var buttonPorts = []byte{'B', 'E', 'F'}

// SPI clock and MOSI on the 32U4. They toggle during every transfer so they
// are never a chip select.
var (
	pinSCK  = avr.Pin{Port: 'B', Bit: 1}
	pinMOSI = avr.Pin{Port: 'B', Bit: 2}
)

// Binding is the cartridge chip select line.
type Binding struct {
	Pin      avr.Pin
	Bound    bool
	Selected bool
	// set by configuration; auto-detection leaves it alone
	Override bool
	// the cartridge has been selected at least once on this pin
	Confirmed bool

	handle avr.Handle
}

// Board is a machine with the OLED and the FX cartridge wired to it. Attach
// registers every callback and samples the pins; PowerOn resets the machine.
// Nothing may run the machine between the two.
type Board struct {
	M       *avr.Machine
	OLED    *oled.Display
	Cart    *fx.Cart
	Speaker *Speaker

	cfg          Config
	detect       *fx.Detector
	cs           Binding
	oledSelected bool
	inputs       map[byte]*avr.Signal
	buttons      Buttons
	probes       int
}

// Attach wires a fresh, not yet reset machine.
func Attach(m *avr.Machine, cfg Config) (*Board, error) {
	cfg.Defaults()
	b := &Board{
		M:      m,
		OLED:   oled.New(),
		Cart:   fx.NewCart(),
		cfg:    cfg,
		inputs: make(map[byte]*avr.Signal),
	}

	if err := b.OLED.Connect(m, oled.ArduboyWiring); err != nil {
		return nil, err
	}

	w := oled.ArduboyWiring
	b.detect = fx.NewDetector(cfg.Thresholds, w.ChipSelect, w.DataInstruction, w.Reset, pinSCK, pinMOSI)

	oledCS, err := m.PinSignal(w.ChipSelect)
	if err != nil {
		return nil, err
	}
	b.oledSelected = oledCS.Value() == 0
	oledCS.OnEdge(b.onOLEDChipSelect)

	for _, name := range buttonPorts {
		p, ok := m.Port(name)
		if !ok {
			return nil, fmt.Errorf("%w: PORT%c input", avr.ErrNoSignal, name)
		}
		b.inputs[name] = p.In
	}

	pin, override := cfg.ChipSelect, false
	if p, ok := cfg.Dev.Pin(); ok {
		pin, override = p, true
	}
	if err := b.bind(pin, override); err != nil {
		return nil, err
	}

	b.Speaker = NewSpeaker(m)
	if err := b.Speaker.Attach(m); err != nil {
		return nil, err
	}

	m.SPI().Out.OnEdge(b.onSPI)
	return b, nil
}

// PowerOn releases every button and resets the machine. The OLED is marked
// dirty so the first frame is presented.
func (b *Board) PowerOn() error {
	if b == nil || b.M == nil || b.Cart == nil {
		return ErrNotAttached
	}
	b.SetButtons(0)
	b.M.Reset()
	b.Cart.End()
	b.Speaker.Reset()
	b.OLED.SetFlag(oled.FlagDirty, true)
	return nil
}

// ChipSelect returns the cartridge chip select binding.
func (b *Board) ChipSelect() Binding { return b.cs }

// OLEDSelected reports whether the display owns the bus.
func (b *Board) OLEDSelected() bool { return b.oledSelected }

// Probes returns the number of probe bytes no device answered.
func (b *Board) Probes() int { return b.probes }

// ResetCartridge forgets the image and puts the chip select back where
// configuration says it is.
func (b *Board) ResetCartridge() {
	b.Cart.Clear()
	b.detect.Reset()
	b.probes = 0
	pin, override := b.cfg.ChipSelect, false
	if p, ok := b.cfg.Dev.Pin(); ok {
		pin, override = p, true
	}
	if err := b.bind(pin, override); err != nil {
		logger.Logf("fx", "chip select %v: %v", pin, err)
	}
}

// bind moves the cartridge chip select onto pin and samples its level.
func (b *Board) bind(pin avr.Pin, override bool) error {
	sig, err := b.M.PinSignal(pin)
	if err != nil {
		return err
	}
	b.cs.handle.Remove()
	b.cs = Binding{
		Pin:      pin,
		Bound:    true,
		Override: override,
		Selected: sig.Value() == 0,
		handle:   sig.OnEdge(b.onChipSelect),
	}
	b.cs.Confirmed = b.cs.Selected
	b.Cart.End()
	logger.Logf("fx", "chip select on %v", pin)
	return nil
}

func (b *Board) onChipSelect(v uint32) {
	selected := v == 0
	if selected == b.cs.Selected {
		return
	}
	b.cs.Selected = selected
	if selected {
		b.cs.Confirmed = true
		b.Cart.Begin()
	} else {
		b.Cart.End()
	}
}

func (b *Board) onOLEDChipSelect(v uint32) {
	selected := v == 0
	if selected == b.oledSelected {
		return
	}
	b.oledSelected = selected
	logger.Debugf(logger.Trace, "oled", "selected %v", selected)
}

func (b *Board) onSPI(v uint32) {
	out := uint8(v)
	if b.cs.Selected && !b.oledSelected {
		b.M.SPI().In.Raise(uint32(b.Cart.Transfer(out)))
		return
	}

	if !b.oledSelected && fx.IsProbe(out) {
		b.probes++
		logger.Debugf(logger.Verbose, "fx", "probe %#02x with no chip selected", out)
		if !b.cs.Override && !b.cs.Confirmed {
			if b.autodetect(out) {
				return
			}
		}
	}

	// nothing drives MISO
	b.M.SPI().In.Raise(0xFF)
}

// autodetect scores a probe byte and, once a pin wins, rebinds the chip
// select. If the new pin is already asserted the byte is the cartridge's.
func (b *Board) autodetect(probe uint8) bool {
	pin, ok := b.detect.Observe(fx.Sample(b.M))
	if !ok || pin == b.cs.Pin {
		return false
	}
	logger.Logf("fx", "chip select detected on %v after %d probes", pin, b.detect.Samples())
	b.detect.Reset()
	if err := b.bind(pin, false); err != nil {
		logger.Logf("fx", "rebind %v: %v", pin, err)
		return false
	}
	if !b.cs.Selected {
		return false
	}
	b.Cart.Begin()
	b.M.SPI().In.Raise(uint32(b.Cart.Transfer(probe)))
	return true
}

// SetButtons applies the held buttons to the input pins, active low.
func (b *Board) SetButtons(held Buttons) {
	b.buttons = held
	levels := map[byte]uint8{'B': 0xFF, 'E': 0xFF, 'F': 0xFF}
	for _, bp := range buttonPins {
		if held&bp.button != 0 {
			levels[bp.pin.Port] &^= 1 << bp.pin.Bit
		}
	}
	for _, name := range buttonPorts {
		b.inputs[name].Raise(uint32(levels[name]))
	}
}

// Buttons returns the held buttons.
func (b *Board) Buttons() Buttons { return b.buttons }
