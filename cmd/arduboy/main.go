// Command arduboy runs Arduboy games in a window or headlessly.
//
// The binary carries the board around the MCU (display, FX cartridge,
// buttons, speaker) but no AVR instruction core. A core has to be linked in
// and registered with avr.RegisterCore for the "atmega32u4" part, typically
// from an init function in a package imported for its side effects:
//
//	import _ "example.com/yourcore/arduboycore"
//
// Without one every run stops with "emu: not initialized" and the list
// of registered cores, which is empty.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/config"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/display"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/emu"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/roms"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/statsview"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/ui"
)

type CLIFlags struct {
	ROM    string // name, index or path to a .hex
	ROMDir string
	Scale  int
	Title  string
	Mute   bool
	Stats  bool

	// headless
	Headless bool
	Ticks    int
	PNGOut   string
	Expect   string // expected frame CRC32 hex (e.g., "1a2b3c4d")
	ASCII    bool
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROM, "rom", "", "game to start: menu name, index or path to a .hex")
	flag.StringVar(&f.ROMDir, "romdir", "roms", "directory scanned for .hex games")
	flag.IntVar(&f.Scale, "scale", 4, "window scale")
	flag.StringVar(&f.Title, "title", "arduboy", "window title")
	flag.BoolVar(&f.Mute, "mute", false, "start with audio muted")
	flag.BoolVar(&f.Stats, "statsview", false, "serve runtime statistics on "+statsview.Address)

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Ticks, "ticks", 300, "10ms slices to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write the last frame to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert frame CRC32 (hex)")
	flag.BoolVar(&f.ASCII, "ascii", false, "print the last frame to stdout")
	flag.Parse()
	return f
}

// gameList is the built-in games, the scanned directory, and a -rom path if
// it names a file.
func gameList(f *CLIFlags) []roms.Descriptor {
	list := roms.Builtin()
	if f.ROMDir != "" {
		if found, err := roms.Scan(f.ROMDir); err == nil {
			list = append(list, found...)
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("scan %s: %v", f.ROMDir, err)
		}
	}
	if strings.EqualFold(filepath.Ext(f.ROM), ".hex") {
		text, err := os.ReadFile(f.ROM)
		if err != nil {
			log.Fatalf("read %s: %v", f.ROM, err)
		}
		name := strings.TrimSuffix(filepath.Base(f.ROM), filepath.Ext(f.ROM))
		d := roms.Descriptor{Name: name, Hex: string(text)}
		image := strings.TrimSuffix(f.ROM, filepath.Ext(f.ROM)) + ".bin"
		if fi, err := os.Stat(image); err == nil && !fi.IsDir() {
			d.NeedsFX, d.Image = true, image
		}
		list = append(list, d)
		f.ROM = name
	}
	return list
}

type headlessHost struct{ exited bool }

func (h *headlessHost) ExitToMain()    { h.exited = true }
func (h *headlessHost) RequestUpdate() {}

func runHeadless(s *emu.Session, lcd *display.Capture, f CLIFlags) error {
	ticks := f.Ticks
	if ticks <= 0 {
		ticks = 1
	}
	if err := s.Enter(); err != nil {
		return err
	}
	if f.ROM != "" && s.Mode() != emu.Game {
		i, ok := roms.Find(s.ROMs(), f.ROM)
		if !ok {
			return fmt.Errorf("no rom %q", f.ROM)
		}
		if err := s.Launch(i); err != nil {
			return err
		}
	}

	start := time.Now()
	for i := 0; i < ticks; i++ {
		s.TimeSlice10ms()
		s.Render()
	}
	dur := time.Since(start)

	frame, _ := lcd.Snapshot()
	crc := frame.CRC32()
	speed := float64(ticks) * emu.SliceMicros / 1e6 / dur.Seconds()
	log.Printf("headless: mode=%s ticks=%d elapsed=%s speed=%.2fx frame_crc32=%08x",
		s.Mode(), ticks, dur.Truncate(time.Millisecond), speed, crc)
	if w := s.Warning(); w != "" {
		log.Printf("warning: %s", w)
	}

	if f.PNGOut != "" {
		if err := saveFramePNG(&frame, f.Scale, f.PNGOut); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", f.PNGOut)
	}
	if f.ASCII {
		step := 1
		// two columns per character don't fit: halve the width
		if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
			if w, _, err := term.GetSize(fd); err == nil && w < display.Width {
				step = 2
			}
		}
		if err := frame.WriteASCII(os.Stdout, step); err != nil {
			return err
		}
	}

	if f.Expect != "" {
		// normalize expected hex (allow with/without 0x, upper/lowercase)
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(frame *display.Frame, scale int, path string) error {
	if scale <= 0 {
		scale = 1
	}
	img := frame.Image(color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}, color.RGBA{0, 0, 0, 0xFF}, scale)
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}

func main() {
	f := parseFlags()

	dev := config.Load()
	logger.SetLevel(dev.Level())
	if dev.LogPath != "" {
		sink, err := logger.OpenSink(dev.LogPath)
		if err != nil {
			log.Fatalf("log sink: %v", err)
		}
		defer sink.Close()
		logger.SetEcho(sink)
	}
	if f.Stats {
		statsview.Launch(os.Stdout)
	}

	list := gameList(&f)
	if f.ROM != "" && dev.Autostart == "" {
		dev.Autostart = f.ROM
	}
	lcd := &display.Capture{}
	cfg := emu.Config{Dev: dev}

	var err error
	if f.Headless {
		err = runHeadless(emu.New(cfg, lcd, &headlessHost{}, list), lcd, f)
	} else {
		app := ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale, Muted: f.Mute}, lcd)
		err = app.Run(emu.New(cfg, lcd, app, list))
	}
	if errors.Is(err, emu.ErrNotInitialized) {
		log.Fatalf("%v (cores available: %v)", err, avr.Cores())
	}
	if err != nil {
		log.Fatal(err)
	}
}
