package emu_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr/avrtest"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/config"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/display"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/emu"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/keys"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/oled"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/roms"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/test"
)

const endOfFile = ":00000001FF"

type host struct {
	exits   int
	updates int
}

func (h *host) ExitToMain()    { h.exits++ }
func (h *host) RequestUpdate() { h.updates++ }

type rig struct {
	s    *emu.Session
	lcd  *display.Capture
	host *host
	core *avrtest.Script
}

func newRig(t *testing.T, list []roms.Descriptor, dev config.Dev, ops ...avrtest.Op) *rig {
	t.Helper()
	if dev.FXDir == "" {
		dev.FXDir = t.TempDir()
	}
	r := &rig{
		lcd:  &display.Capture{},
		host: &host{},
		core: &avrtest.Script{Ops: ops, IdleCycles: 1000},
	}
	cfg := emu.Config{
		Dev: dev,
		NewMachine: func(string) (*avr.Machine, error) {
			return avr.New(avr.ATmega32U4, r.core), nil
		},
	}
	r.s = emu.New(cfg, r.lcd, r.host, list)
	if err := r.s.Enter(); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	return r
}

func games(names ...string) []roms.Descriptor {
	var list []roms.Descriptor
	for _, n := range names {
		list = append(list, roms.Descriptor{Name: n, Hex: endOfFile})
	}
	return list
}

func (r *rig) launch(t *testing.T, i int) {
	t.Helper()
	if err := r.s.Launch(i); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	test.ExpectEquality(t, r.s.Mode(), emu.Game)
}

// oledWrite returns ops sending bytes to the display: CS (D6) low, DC (D4)
// selecting data or command, RST (D7) held high.
func oledWrite(data bool, bytes ...byte) []avrtest.Op {
	v := uint8(0x80)
	if data {
		v |= 0x10
	}
	ops := []avrtest.Op{avrtest.DDRWrite('D', 0xD0), avrtest.PortWrite('D', v)}
	for _, b := range bytes {
		ops = append(ops, avrtest.Transmit(b, nil))
	}
	return append(ops, avrtest.PortWrite('D', 0xD0))
}

func TestTickRenderHandoff(t *testing.T) {
	ops := append(oledWrite(false, 0xAF), oledWrite(true, 0x81)...)
	r := newRig(t, games("Test"), config.Dev{}, ops...)
	r.launch(t, 0)

	d := r.s.Display()
	d.SetFlag(oled.FlagDirty, false)
	test.ExpectFailure(t, r.s.FrameReady())

	r.s.TimeSlice10ms()
	test.ExpectSuccess(t, d.Flag(oled.FlagDisplayOn))
	test.ExpectSuccess(t, r.s.FrameReady())
	test.ExpectSuccess(t, d.Flag(oled.FlagDirty))

	// another tick does not clear anything
	r.s.TimeSlice10ms()
	test.ExpectSuccess(t, d.Flag(oled.FlagDirty))

	r.s.Render()
	test.ExpectFailure(t, r.s.FrameReady())
	test.ExpectFailure(t, d.Flag(oled.FlagDirty))
	test.ExpectSuccess(t, r.s.HasFrame())

	frame, serial := r.lcd.Snapshot()
	test.ExpectEquality(t, frame.Status[0], byte(0x81))

	// nothing new: nothing blitted
	r.s.Render()
	_, again := r.lcd.Snapshot()
	test.ExpectEquality(t, again, serial)
}

func TestTickUsesTenMillisecondBudget(t *testing.T) {
	r := newRig(t, games("Test"), config.Dev{})
	r.launch(t, 0)
	m := r.s.Machine()

	start := m.Cycle
	r.s.TimeSlice10ms()
	test.ExpectEquality(t, m.Cycle-start, m.UsecToCycles(10_000))

	start = m.Cycle
	r.s.TimeSlice10ms()
	test.ExpectEquality(t, m.Cycle-start, uint64(160_000))
}

func TestFirstRenderIsBlankOnce(t *testing.T) {
	r := newRig(t, games("Test"), config.Dev{})
	r.s.Render()
	menu, _ := r.lcd.Snapshot()
	test.ExpectFailure(t, menu.Blank())

	r.launch(t, 0)
	r.s.Render()
	frame, serial := r.lcd.Snapshot()
	test.ExpectSuccess(t, frame.Blank())
	test.ExpectSuccess(t, r.s.HasFrame())

	r.s.Render()
	_, again := r.lcd.Snapshot()
	test.ExpectEquality(t, again, serial)
}

func TestDisplayOffRendersBlank(t *testing.T) {
	r := newRig(t, games("Test"), config.Dev{})
	r.launch(t, 0)

	d := r.s.Display()
	d.VRAM[2][5] = 0xFF
	r.s.TimeSlice10ms()
	r.s.Render()
	frame, _ := r.lcd.Snapshot()
	test.ExpectSuccess(t, frame.Blank())

	d.SetFlag(oled.FlagDisplayOn, true)
	d.SetFlag(oled.FlagCOMScanNormal, true)
	d.SetFlag(oled.FlagDirty, true)
	r.s.TimeSlice10ms()
	r.s.Render()
	frame, _ = r.lcd.Snapshot()
	// page 2 lands on page 5 when the scan direction is flipped
	test.ExpectEquality(t, frame.Body[4][5], byte(0xFF))
}

func TestHaltedROM(t *testing.T) {
	r := newRig(t, games("Test"), config.Dev{})
	r.launch(t, 0)
	m := r.s.Machine()

	m.State = avr.Crashed
	r.s.TimeSlice10ms()
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
	test.ExpectEquality(t, r.s.Warning(), emu.WarnHalted)

	cycle := m.Cycle
	r.s.TimeSlice10ms()
	test.ExpectEquality(t, m.Cycle, cycle)
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)

	// the warning shows on the menu status line
	r.s.Render()
	frame, _ := r.lcd.Snapshot()
	if frame.Status == ([display.Width]byte{}) {
		t.Fatalf("status line empty")
	}
}

func TestHaltDuringSlice(t *testing.T) {
	r := newRig(t, games("Test"), config.Dev{}, avrtest.Op{Cycles: 10}, avrtest.Halt(avr.Done))
	r.launch(t, 0)
	r.s.TimeSlice10ms()
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
	test.ExpectEquality(t, r.s.Warning(), emu.WarnHalted)
	test.ExpectEquality(t, r.core.Steps, 2)
}

func TestModeChangeStopsSlice(t *testing.T) {
	var s *emu.Session
	// the game is left from inside the slice, as a key handler running
	// during emulation would
	exit := avrtest.Op{Cycles: 10, Do: func(*avr.Machine) {
		s.ProcessKeys(keys.KeyExit, false, false)
	}}
	r := newRig(t, games("Test"), config.Dev{}, exit)
	s = r.s
	r.launch(t, 0)

	r.s.TimeSlice10ms()
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
	test.ExpectEquality(t, r.core.Steps, 1)
	test.ExpectEquality(t, r.s.Warning(), "")
}

func TestScannedGameFindsItsCartridge(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Foo.hex"), []byte(endOfFile+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Foo.bin"), []byte{9, 8, 7, 6}, 0644); err != nil {
		t.Fatal(err)
	}
	list, err := roms.Scan(dir)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(list), 1)

	r := newRig(t, list, config.Dev{})
	r.launch(t, 0)
	test.ExpectEquality(t, r.s.Warning(), "")
	test.ExpectSuccess(t, r.s.Cart().Loaded())
	test.ExpectEquality(t, r.s.Cart().Size(), 4)
}

func TestMissingCartridgeStillLaunches(t *testing.T) {
	list := []roms.Descriptor{{Name: "NoSuchGameAnywhere", Hex: endOfFile, NeedsFX: true}}
	r := newRig(t, list, config.Dev{})

	r.launch(t, 0)
	test.ExpectEquality(t, r.s.Warning(), emu.WarnFXMissing)
	test.ExpectFailure(t, r.s.Cart().Loaded())
}

func TestCartridgeFromFallbackDir(t *testing.T) {
	dir := t.TempDir()
	img := []byte{1, 2, 3, 4}
	if err := os.WriteFile(filepath.Join(dir, "mystic_balloon.bin"), img, 0644); err != nil {
		t.Fatal(err)
	}
	list := []roms.Descriptor{{Name: "Mystic Balloon", Hex: endOfFile, NeedsFX: true}}
	r := newRig(t, list, config.Dev{FXDir: dir, FXBase: "0x100"})

	r.launch(t, 0)
	test.ExpectEquality(t, r.s.Warning(), "")
	test.ExpectSuccess(t, r.s.Cart().Loaded())
	test.ExpectEquality(t, r.s.Cart().Base(), uint32(0x100))
	test.ExpectEquality(t, r.s.Cart().Peek(0x102), byte(3))
}

func TestBadHexStaysInMenu(t *testing.T) {
	list := []roms.Descriptor{{Name: "Broken", Hex: ":01000000AA00\n" + endOfFile}}
	r := newRig(t, list, config.Dev{})

	err := r.s.Launch(0)
	test.ExpectFailure(t, err)
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)

	// through the keypad the failure is silent
	r.s.ProcessKeys(keys.KeyUp, true, false)
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
	test.ExpectEquality(t, r.s.Warning(), "")
}

func TestMenuNavigation(t *testing.T) {
	r := newRig(t, games("A", "B", "C"), config.Dev{})

	for i := 0; i < 5; i++ {
		r.s.ProcessKeys(keys.Key8, true, false)
	}
	test.ExpectEquality(t, r.s.Selected(), 2)

	// repeats and releases do not move the cursor
	r.s.ProcessKeys(keys.Key2, true, true)
	r.s.ProcessKeys(keys.Key2, false, false)
	test.ExpectEquality(t, r.s.Selected(), 2)

	for i := 0; i < 5; i++ {
		r.s.ProcessKeys(keys.Key2, true, false)
	}
	test.ExpectEquality(t, r.s.Selected(), 0)

	r.s.ProcessKeys(keys.Key8, true, false)
	r.s.ProcessKeys(keys.KeyUp, true, false)
	test.ExpectEquality(t, r.s.Mode(), emu.Game)
	test.ExpectEquality(t, r.s.Current(), 1)

	// first exit: back to the menu, second exit: back to the host
	r.s.ProcessKeys(keys.KeyExit, true, false)
	test.ExpectEquality(t, r.s.Mode(), emu.Game)
	r.s.ProcessKeys(keys.KeyExit, false, false)
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
	test.ExpectEquality(t, r.host.exits, 0)
	r.s.ProcessKeys(keys.KeyExit, false, false)
	test.ExpectEquality(t, r.host.exits, 1)
}

func TestEmptyMenu(t *testing.T) {
	r := newRig(t, nil, config.Dev{})
	r.s.ProcessKeys(keys.Key8, true, false)
	test.ExpectEquality(t, r.s.Selected(), 0)
	r.s.ProcessKeys(keys.KeyUp, true, false)
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)

	r.s.Render()
	frame, _ := r.lcd.Snapshot()
	test.ExpectFailure(t, frame.Blank())
}

func TestButtonsAreActiveLow(t *testing.T) {
	r := newRig(t, games("Test"), config.Dev{})
	r.launch(t, 0)
	m := r.s.Machine()
	pf, _ := m.Port('F')
	pe, _ := m.Port('E')
	pb, _ := m.Port('B')

	r.s.ProcessKeys(keys.Key2, true, false)
	r.s.ProcessKeys(keys.Key6, true, false)
	test.ExpectEquality(t, pf.PIN(), uint8(0x3F))
	test.ExpectEquality(t, r.s.Board().Buttons(), emu.ButtonUp|emu.ButtonRight)

	r.s.ProcessKeys(keys.Key2, false, false)
	test.ExpectEquality(t, pf.PIN(), uint8(0xBF))

	r.s.ProcessKeys(keys.KeyUp, true, false)
	r.s.ProcessKeys(keys.KeyDown, true, false)
	test.ExpectEquality(t, pe.PIN(), uint8(0xBF))
	test.ExpectEquality(t, pb.PIN(), uint8(0xEF))

	// keys without a button do nothing
	r.s.ProcessKeys(keys.Key5, true, false)
	test.ExpectEquality(t, r.s.Board().Buttons(), emu.ButtonRight|emu.ButtonA|emu.ButtonB)

	// leaving the game releases everything
	r.s.ProcessKeys(keys.KeyExit, false, false)
	test.ExpectEquality(t, pf.PIN(), uint8(0xFF))
	test.ExpectEquality(t, pe.PIN(), uint8(0xFF))
	test.ExpectEquality(t, pb.PIN(), uint8(0xFF))
}

func TestAutostart(t *testing.T) {
	r := newRig(t, games("A", "B"), config.Dev{Autostart: "b"})
	test.ExpectEquality(t, r.s.Mode(), emu.Game)
	test.ExpectEquality(t, r.s.Current(), 1)

	// only the first Enter starts a game
	r.s.ProcessKeys(keys.KeyExit, false, false)
	test.ExpectSuccess(t, r.s.Enter())
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
}

func TestNotInitialized(t *testing.T) {
	lcd := &display.Capture{}
	s := emu.New(emu.Config{}, lcd, nil, games("A"))

	err := s.Enter()
	if !errors.Is(err, emu.ErrNotInitialized) || !errors.Is(err, avr.ErrNoCore) {
		t.Fatalf("got %v want ErrNotInitialized wrapping ErrNoCore", err)
	}
	test.ExpectFailure(t, s.Initialized())

	s.TimeSlice10ms()
	s.Render()
	s.ProcessKeys(keys.KeyUp, true, false)
	_, serial := lcd.Snapshot()
	test.ExpectEquality(t, serial, 0)
	test.ExpectEquality(t, s.Mode(), emu.Menu)
	test.ExpectFailure(t, s.Launch(0))
	test.ExpectEquality(t, s.Machine(), (*avr.Machine)(nil))
}

func TestMenuWindow(t *testing.T) {
	for _, tc := range []struct {
		total, selected, start, rows int
	}{
		{0, 0, 0, 0},
		{3, 2, 0, 3},
		{5, 4, 0, 5},
		{10, 0, 0, 5},
		{10, 4, 2, 5},
		{10, 9, 5, 5},
	} {
		start, rows := emu.MenuWindow(tc.total, tc.selected)
		if start != tc.start || rows != tc.rows {
			t.Errorf("MenuWindow(%d, %d) got %d,%d want %d,%d", tc.total, tc.selected, start, rows, tc.start, tc.rows)
		}
	}
	test.ExpectEquality(t, emu.MenuLine("Blank", true), ">Blank")
	test.ExpectEquality(t, emu.MenuLine("Blank", false), " Blank")
	test.ExpectEquality(t, len(emu.MenuLine("A Very Long Game Name Indeed", false)), 19)
}
