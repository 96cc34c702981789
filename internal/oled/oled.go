// Package oled models an SSD1306-compatible display controller wired to the
// emulated MCU's SPI bus and three GPIO lines (chip select, data/command and
// reset). Only the write path exists: the controller never drives MISO.
package oled

import (
	"fmt"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
)

const (
	Columns = 128
	Pages   = 8
)

// Flag is one of the controller status bits the renderer cares about.
type Flag uint32

const (
	FlagDisplayOn Flag = 1 << iota
	// column 0 mapped to SEG0 (command 0xA0); the Arduboy sends 0xA1
	FlagSegmentRemap0
	// COM0 scanned first (command 0xC0); the Arduboy sends 0xC8
	FlagCOMScanNormal
	FlagInverted
	FlagDirty
)

// Wiring connects the controller's control lines to MCU pins.
type Wiring struct {
	ChipSelect      avr.Pin
	DataInstruction avr.Pin
	Reset           avr.Pin
}

// ArduboyWiring is the Arduboy's display hookup.
var ArduboyWiring = Wiring{
	ChipSelect:      avr.Pin{Port: 'D', Bit: 6},
	DataInstruction: avr.Pin{Port: 'D', Bit: 4},
	Reset:           avr.Pin{Port: 'D', Bit: 7},
}

type addressing int

const (
	addrHorizontal addressing = 0
	addrVertical   addressing = 1
	addrPage       addressing = 2
)

// Display is the virtual controller.
type Display struct {
	VRAM [Pages][Columns]byte

	flags    Flag
	contrast uint8

	mode     addressing
	page     int
	col      int
	colStart int
	colEnd   int
	pgStart  int
	pgEnd    int

	// multi-byte command in progress
	cmd     byte
	args    [6]byte
	argc    int
	argWant int

	selected bool
	data     bool
}

// New returns a controller in its power-on state.
func New() *Display {
	d := &Display{}
	d.Reset()
	return d
}

// Reset returns the controller registers to their power-on values. VRAM
// contents are undefined on real parts; they are kept here.
func (d *Display) Reset() {
	d.flags &= FlagDirty
	d.contrast = 0x7F
	d.mode = addrPage
	d.page, d.col = 0, 0
	d.colStart, d.colEnd = 0, Columns-1
	d.pgStart, d.pgEnd = 0, Pages-1
	d.argc, d.argWant = 0, 0
}

// Flag reports whether f is set.
func (d *Display) Flag(f Flag) bool { return d.flags&f != 0 }

// SetFlag sets or clears f.
func (d *Display) SetFlag(f Flag, on bool) {
	if on {
		d.flags |= f
	} else {
		d.flags &^= f
	}
}

// Selected reports whether the chip select line is asserted.
func (d *Display) Selected() bool { return d.selected }

// Contrast returns the last contrast setting.
func (d *Display) Contrast() uint8 { return d.contrast }

// Connect attaches the controller to the machine's SPI bus and GPIO lines and
// samples the current pin levels.
func (d *Display) Connect(m *avr.Machine, w Wiring) error {
	cs, err := m.PinSignal(w.ChipSelect)
	if err != nil {
		return fmt.Errorf("oled: chip select: %w", err)
	}
	dc, err := m.PinSignal(w.DataInstruction)
	if err != nil {
		return fmt.Errorf("oled: data/command: %w", err)
	}
	rst, err := m.PinSignal(w.Reset)
	if err != nil {
		return fmt.Errorf("oled: reset: %w", err)
	}

	d.selected = cs.Value() == 0
	d.data = dc.Value() != 0

	cs.OnEdge(func(v uint32) { d.selected = v == 0 })
	dc.OnEdge(func(v uint32) { d.data = v != 0 })
	rst.OnEdge(func(v uint32) {
		if v == 0 {
			d.Reset()
		}
	})
	m.SPI().Out.OnEdge(func(v uint32) {
		if d.selected {
			d.Write(uint8(v))
		}
	})
	return nil
}

// Write consumes one SPI byte while selected; the D/C line decides whether it
// is display data or a command.
func (d *Display) Write(b uint8) {
	if d.data {
		d.writeData(b)
		return
	}
	d.writeCommand(b)
}

func (d *Display) writeData(b uint8) {
	d.VRAM[d.page][d.col] = b
	d.flags |= FlagDirty

	switch d.mode {
	case addrHorizontal:
		d.col++
		if d.col > d.colEnd {
			d.col = d.colStart
			d.page++
			if d.page > d.pgEnd {
				d.page = d.pgStart
			}
		}
	case addrVertical:
		d.page++
		if d.page > d.pgEnd {
			d.page = d.pgStart
			d.col++
			if d.col > d.colEnd {
				d.col = d.colStart
			}
		}
	default:
		d.col++
		if d.col >= Columns {
			d.col = d.colStart
		}
	}
}

// number of argument bytes for the multi-byte commands
var argCount = map[byte]int{
	0x20: 1, // memory addressing mode
	0x21: 2, // column address
	0x22: 2, // page address
	0x26: 6, // horizontal scroll setup
	0x27: 6,
	0x29: 5, // vertical+horizontal scroll setup
	0x2A: 5,
	0x81: 1, // contrast
	0x8D: 1, // charge pump
	0xA3: 2, // vertical scroll area
	0xA8: 1, // multiplex ratio
	0xD3: 1, // display offset
	0xD5: 1, // clock divide
	0xD9: 1, // pre-charge
	0xDA: 1, // COM pins
	0xDB: 1, // VCOMH deselect
}

func (d *Display) writeCommand(b uint8) {
	if d.argWant > 0 {
		d.args[d.argc] = b
		d.argc++
		if d.argc == d.argWant {
			d.argWant = 0
			d.finish()
		}
		return
	}

	if n, ok := argCount[b]; ok {
		d.cmd = b
		d.argc = 0
		d.argWant = n
		return
	}

	switch {
	case b <= 0x0F:
		d.col = (d.col & 0xF0) | int(b&0x0F)
	case b <= 0x1F:
		d.col = (d.col & 0x0F) | int(b&0x07)<<4
	case b >= 0x40 && b <= 0x7F:
		// display start line: the renderer shows VRAM as stored
	case b >= 0xB0 && b <= 0xB7:
		d.page = int(b & 0x07)
	case b == 0xA0:
		d.change(FlagSegmentRemap0, true)
	case b == 0xA1:
		d.change(FlagSegmentRemap0, false)
	case b == 0xA6:
		d.change(FlagInverted, false)
	case b == 0xA7:
		d.change(FlagInverted, true)
	case b == 0xAE:
		d.change(FlagDisplayOn, false)
	case b == 0xAF:
		d.change(FlagDisplayOn, true)
	case b == 0xC0:
		d.change(FlagCOMScanNormal, true)
	case b == 0xC8:
		d.change(FlagCOMScanNormal, false)
	}
}

func (d *Display) finish() {
	a := d.args
	switch d.cmd {
	case 0x20:
		m := addressing(a[0] & 0x03)
		if m > addrPage {
			m = addrPage
		}
		d.mode = m
	case 0x21:
		d.colStart = int(a[0] & 0x7F)
		d.colEnd = int(a[1] & 0x7F)
		d.col = d.colStart
	case 0x22:
		d.pgStart = int(a[0] & 0x07)
		d.pgEnd = int(a[1] & 0x07)
		d.page = d.pgStart
	case 0x81:
		d.contrast = a[0]
	}
}

func (d *Display) change(f Flag, on bool) {
	if d.Flag(f) == on {
		return
	}
	d.SetFlag(f, on)
	d.flags |= FlagDirty
}
