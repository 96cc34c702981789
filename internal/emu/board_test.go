package emu_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr/avrtest"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/config"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/emu"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/keys"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/roms"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/test"
)

func TestPowerOnNeedsAttach(t *testing.T) {
	var b *emu.Board
	if err := b.PowerOn(); !errors.Is(err, emu.ErrNotAttached) {
		t.Fatalf("got %v want ErrNotAttached", err)
	}
	if err := (&emu.Board{}).PowerOn(); !errors.Is(err, emu.ErrNotAttached) {
		t.Fatalf("got %v want ErrNotAttached", err)
	}
}

func TestAttachSamplesPinsBeforeReset(t *testing.T) {
	m := avr.New(avr.ATmega32U4, nil)
	// leave the chip select asserted before anything is attached
	pd, _ := m.Port('D')
	pd.WriteDDR(0x02)

	b, err := emu.Attach(m, emu.Config{})
	test.ExpectSuccess(t, err)
	cs := b.ChipSelect()
	test.ExpectEquality(t, cs.Pin, emu.DefaultChipSelect)
	test.ExpectSuccess(t, cs.Selected)
	test.ExpectFailure(t, cs.Override)

	test.ExpectSuccess(t, b.PowerOn())
	test.ExpectEquality(t, m.State, avr.Running)
	test.ExpectFailure(t, b.ChipSelect().Selected)
}

func TestSPIRoutedToCartridge(t *testing.T) {
	var got []byte
	ops := []avrtest.Op{
		avrtest.DDRWrite('D', 0x02),
		avrtest.PortWrite('D', 0x00),
		avrtest.Transmit(fx.OpJEDECID, &got),
		avrtest.Transmit(0, &got),
		avrtest.Transmit(0, &got),
		avrtest.Transmit(0, &got),
		avrtest.PortWrite('D', 0x02),
		// deselected: the bus floats
		avrtest.Transmit(0, &got),
	}
	r := newRig(t, games("Test"), config.Dev{}, ops...)
	r.launch(t, 0)
	r.s.TimeSlice10ms()

	want := []byte{0xFF, 0xEF, 0x40, 0x18, 0xFF}
	if string(got) != string(want) {
		t.Fatalf("got % X want % X", got, want)
	}
	test.ExpectSuccess(t, r.s.Board().ChipSelect().Confirmed)
}

func TestOLEDOwnsBusWhenBothSelected(t *testing.T) {
	var got []byte
	ops := []avrtest.Op{
		avrtest.DDRWrite('D', 0xD2),
		// D6 and D1 both low, D7 high
		avrtest.PortWrite('D', 0x80),
		avrtest.Transmit(fx.OpJEDECID, &got),
		avrtest.Transmit(0, &got),
	}
	r := newRig(t, games("Test"), config.Dev{}, ops...)
	r.launch(t, 0)
	r.s.TimeSlice10ms()

	test.ExpectSuccess(t, r.s.Board().OLEDSelected())
	if string(got) != "\xFF\xFF" {
		t.Fatalf("got % X want FF FF", got)
	}
}

func TestChipSelectAutoDetect(t *testing.T) {
	var got []byte
	probe := func() []avrtest.Op {
		return []avrtest.Op{
			avrtest.PortWrite('E', 0x00),
			avrtest.Transmit(fx.OpJEDECID, &got),
			avrtest.PortWrite('E', 0x04),
		}
	}
	ops := []avrtest.Op{avrtest.DDRWrite('E', 0x04), avrtest.PortWrite('E', 0x04)}
	ops = append(ops, probe()...)
	ops = append(ops, probe()...)
	ops = append(ops,
		avrtest.PortWrite('E', 0x00),
		avrtest.Transmit(fx.OpJEDECID, &got),
		avrtest.Transmit(0, &got),
		avrtest.Transmit(0, &got),
		avrtest.Transmit(0, &got),
		avrtest.PortWrite('E', 0x04),
	)
	r := newRig(t, games("Test"), config.Dev{}, ops...)
	r.launch(t, 0)
	r.s.TimeSlice10ms()

	cs := r.s.Board().ChipSelect()
	test.ExpectEquality(t, cs.Pin, avr.Pin{Port: 'E', Bit: 2})
	test.ExpectSuccess(t, cs.Confirmed)
	test.ExpectFailure(t, cs.Selected)
	want := []byte{0xFF, 0xFF, 0xFF, 0xEF, 0x40, 0x18}
	if string(got) != string(want) {
		t.Fatalf("got % X want % X", got, want)
	}

	// a new launch starts from the default pin again
	r.s.ProcessKeys(keys.KeyExit, false, false)
	test.ExpectEquality(t, r.s.Mode(), emu.Menu)
	r.launch(t, 0)
	test.ExpectEquality(t, r.s.Board().ChipSelect().Pin, emu.DefaultChipSelect)
}

func TestChipSelectOverrideSkipsDetection(t *testing.T) {
	var got []byte
	ops := []avrtest.Op{
		avrtest.DDRWrite('E', 0x04),
		avrtest.PortWrite('E', 0x00),
	}
	for i := 0; i < 4; i++ {
		ops = append(ops, avrtest.Transmit(fx.OpLegacyID, &got))
	}
	r := newRig(t, games("Test"), config.Dev{ChipSelect: "F0"}, ops...)
	r.launch(t, 0)
	r.s.TimeSlice10ms()

	cs := r.s.Board().ChipSelect()
	test.ExpectEquality(t, cs.Pin, avr.Pin{Port: 'F', Bit: 0})
	test.ExpectSuccess(t, cs.Override)
	test.ExpectEquality(t, r.s.Board().Probes(), 4)
	for _, b := range got {
		test.ExpectEquality(t, b, byte(0xFF))
	}
}

func TestImageCandidates(t *testing.T) {
	rom := roms.Descriptor{Name: "Mystic Balloon", Image: filepath.Join("roms", "Mystic Balloon.bin")}
	got := emu.ImageCandidates(rom, config.Dev{FXPath: "x.bin", FXDir: "/fx"})
	want := []string{
		"x.bin",
		filepath.Join("roms", "Mystic Balloon.bin"),
		filepath.Join("game", "Mystic Balloon.bin"),
		"Mystic Balloon.bin",
		filepath.Join("game", "mystic_balloon.bin"),
		"mystic_balloon.bin",
		filepath.Join("/fx", "Mystic Balloon.bin"),
		filepath.Join("/fx", "mystic_balloon.bin"),
	}
	test.ExpectEquality(t, len(got), len(want))
	for i := range want {
		test.ExpectEquality(t, got[i], want[i])
	}

	got = emu.ImageCandidates(roms.Descriptor{Name: "blank"}, config.Dev{})
	test.ExpectEquality(t, len(got), 3)
	test.ExpectEquality(t, got[2], filepath.Join(config.DefaultFXDir, "blank.bin"))
}

func TestReadImageTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.Truncate(path, fx.DeviceSize+1); err != nil {
		t.Fatal(err)
	}
	if _, err := emu.ReadImage(path); !errors.Is(err, fx.ErrImageTooLarge) {
		t.Fatalf("got %v want ErrImageTooLarge", err)
	}
	_, err = emu.ReadImage(filepath.Join(t.TempDir(), "none.bin"))
	test.ExpectSuccess(t, errors.Is(err, os.ErrNotExist))
}
