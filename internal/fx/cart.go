// Package fx emulates the serial NOR flash of an Arduboy FX cartridge.
//
// The command set is best-effort compatibility with what FX games were seen
// to issue, not a full device model. Anything that would change the flash
// contents is answered with an idle bus and ignored.
package fx

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
)

// DeviceSize is the address space of the emulated part (W25Q128).
const DeviceSize = 16 << 20

var (
	ErrImageTooLarge = errors.New("fx: image larger than flash device")
	ErrNoImage       = errors.New("fx: empty image")
)

// State is the position in the current chip select session.
type State int

const (
	Idle State = iota
	JEDECID
	SignatureAddr
	SignatureData
	LegacyIDAddr
	LegacyIDData
	ReadAddr
	ReadData
	FastReadAddr
	FastReadDummy
	FastReadData
	ReadStatus
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case JEDECID:
		return "jedec id"
	case SignatureAddr:
		return "signature address"
	case SignatureData:
		return "signature"
	case LegacyIDAddr:
		return "legacy id address"
	case LegacyIDData:
		return "legacy id"
	case ReadAddr:
		return "read address"
	case ReadData:
		return "read"
	case FastReadAddr:
		return "fast read address"
	case FastReadDummy:
		return "fast read dummy"
	case FastReadData:
		return "fast read"
	case ReadStatus:
		return "read status"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Opcodes understood by the cartridge.
const (
	OpJEDECID       = 0x9F
	OpReleasePD     = 0xAB
	OpLegacyID      = 0x90
	OpRead          = 0x03
	OpFastRead      = 0x0B
	OpReadStatus    = 0x05
	OpPowerDown     = 0xB9
	OpWriteEnable   = 0x06
	OpWriteDisable  = 0x04
	idleBus         = 0xFF
	signature       = 0x18
	addressBytes    = 3
	addressMask     = DeviceSize - 1
	statusNotBusy   = 0x00
	maxLoggedOpcode = 8
)

var (
	jedecID  = []byte{0xEF, 0x40, 0x18}
	legacyID = []byte{0xEF, 0x18}
)

type command struct {
	name string
	next State
}

// commands is the dispatch table for the first byte of a session. Opcodes
// missing from the table (including write enable/disable) leave the cartridge
// idle.
var commands = map[byte]command{
	OpJEDECID:    {"JEDEC ID", JEDECID},
	OpReleasePD:  {"release power-down", SignatureAddr},
	OpLegacyID:   {"legacy ID", LegacyIDAddr},
	OpRead:       {"read", ReadAddr},
	OpFastRead:   {"fast read", FastReadAddr},
	OpReadStatus: {"read status", ReadStatus},
	OpPowerDown:  {"power down", Idle},
}

// Cart is the flash device. Image and base survive chip select sessions, as
// does deep power-down, which only OpReleasePD clears.
type Cart struct {
	image       []byte
	base        uint32
	basePending bool
	powerDown   bool

	state State
	addr  uint32
	count int
	index int

	unknown int
}

// NewCart returns an empty, deselected cartridge.
func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) String() string {
	if c.image == nil {
		return "no image"
	}
	s := fmt.Sprintf("%d bytes at %#06x", len(c.image), c.base)
	if c.basePending {
		s += " (base pending)"
	}
	return s
}

// Load installs an image without an explicit base. A full size image sits at
// zero. A shorter one is assumed to be the tail of the device until the first
// read address says otherwise.
func (c *Cart) Load(data []byte) error {
	if err := checkImage(data); err != nil {
		return err
	}
	c.image = data
	c.base = uint32(DeviceSize - len(data))
	c.basePending = len(data) < DeviceSize
	c.powerDown = false
	c.End()
	logger.Logf("fx", "loaded %s", c)
	return nil
}

// LoadAt installs an image at a fixed base. The whole image must fit below
// the end of the device.
func (c *Cart) LoadAt(data []byte, base uint32) error {
	if err := checkImage(data); err != nil {
		return err
	}
	if uint64(base)+uint64(len(data)) > DeviceSize {
		return fmt.Errorf("%w: %d bytes at %#06x", ErrImageTooLarge, len(data), base)
	}
	c.image = data
	c.base = base
	c.basePending = false
	c.powerDown = false
	c.End()
	logger.Logf("fx", "loaded %s", c)
	return nil
}

func checkImage(data []byte) error {
	if len(data) == 0 {
		return ErrNoImage
	}
	if len(data) > DeviceSize {
		return fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}
	return nil
}

// Clear forgets the image and all session state.
func (c *Cart) Clear() {
	*c = Cart{}
}

// Loaded reports whether an image is installed.
func (c *Cart) Loaded() bool { return c.image != nil }

// Base returns the device address of the first image byte.
func (c *Cart) Base() uint32 { return c.base }

// BasePending reports whether the head/tail decision is still open.
func (c *Cart) BasePending() bool { return c.basePending }

// Size returns the image length.
func (c *Cart) Size() int { return len(c.image) }

// State returns the session state.
func (c *Cart) State() State { return c.state }

// PoweredDown reports deep power-down.
func (c *Cart) PoweredDown() bool { return c.powerDown }

// Begin starts a chip select session.
func (c *Cart) Begin() {
	c.End()
}

// End finishes a chip select session. Deep power-down is kept.
func (c *Cart) End() {
	c.state = Idle
	c.addr = 0
	c.count = 0
	c.index = 0
}

// Transfer clocks one byte in and returns the byte clocked out.
func (c *Cart) Transfer(b uint8) uint8 {
	if c.powerDown && (c.state != Idle || b != OpReleasePD) {
		return idleBus
	}

	switch c.state {
	case Idle:
		c.dispatch(b)
		return idleBus

	case JEDECID:
		r := jedecID[c.index%len(jedecID)]
		c.index++
		return r

	case SignatureAddr:
		c.count++
		if c.count == addressBytes {
			c.state = SignatureData
		}
		return signature

	case SignatureData:
		return signature

	case LegacyIDAddr:
		c.count++
		if c.count == addressBytes {
			c.state = LegacyIDData
		}
		return idleBus

	case LegacyIDData:
		r := legacyID[c.index%len(legacyID)]
		c.index++
		return r

	case ReadAddr, FastReadAddr:
		c.addr = c.addr<<8 | uint32(b)
		c.count++
		if c.count == addressBytes {
			c.addr &= addressMask
			c.resolveBase(c.addr)
			if c.state == ReadAddr {
				c.state = ReadData
			} else {
				c.state = FastReadDummy
			}
			logger.Debugf(logger.Verbose, "fx", "%s at %#06x", c.state, c.addr)
		}
		return idleBus

	case FastReadDummy:
		c.state = FastReadData
		return idleBus

	case ReadData, FastReadData:
		r := c.peek(c.addr)
		c.addr = (c.addr + 1) & addressMask
		return r

	case ReadStatus:
		return statusNotBusy
	}
	return idleBus
}

func (c *Cart) dispatch(b uint8) {
	cmd, ok := commands[b]
	if !ok {
		if c.unknown < maxLoggedOpcode {
			logger.Debugf(logger.Verbose, "fx", "ignored opcode %#02x", b)
		}
		c.unknown++
		return
	}
	logger.Debugf(logger.Trace, "fx", "%s", cmd.name)

	switch b {
	case OpReleasePD:
		c.powerDown = false
	case OpPowerDown:
		c.powerDown = true
	}
	c.state = cmd.next
	c.count = 0
	c.index = 0
	c.addr = 0
}

// resolveBase settles a pending tail placement on the first read address. An
// address inside the image that would be below the tail base can only mean
// the image is a head dump.
func (c *Cart) resolveBase(addr uint32) {
	if !c.basePending {
		return
	}
	c.basePending = false
	if addr < uint32(len(c.image)) && addr < c.base {
		c.base = 0
	}
	logger.Logf("fx", "base settled at %#06x by read of %#06x", c.base, addr)
}

// Peek returns the device byte at addr as a read would.
func (c *Cart) Peek(addr uint32) uint8 {
	return c.peek(addr & addressMask)
}

func (c *Cart) peek(addr uint32) uint8 {
	if addr < c.base {
		return idleBus
	}
	off := addr - c.base
	if off >= uint32(len(c.image)) {
		return idleBus
	}
	return c.image[off]
}
