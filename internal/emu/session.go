// Package emu runs Arduboy games inside a host UI. A Session owns the
// emulated board, the game menu and the handoff of frames to the host LCD.
//
// Every entry point is meant to be called from one goroutine: the host's
// 10ms tick, its render call and its key handler. Peripheral callbacks fire
// inside TimeSlice10ms while the machine steps.
package emu

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/display"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/ihex"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/keys"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/oled"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/roms"
)

// Warnings shown on the menu status line.
const (
	WarnFXMissing = "FX data missing"
	WarnHalted    = "ROM halted"
)

var (
	ErrNotInitialized = errors.New("emu: not initialized")
	ErrNoROM          = errors.New("emu: no such rom")
)

// Mode is what the session shows.
type Mode int

const (
	Menu Mode = iota
	Game
)

func (m Mode) String() string {
	if m == Game {
		return "game"
	}
	return "menu"
}

// Host is the surrounding UI.
type Host interface {
	// leave the emulator and show the host's own screens
	ExitToMain()
	// something changed, call Render soon
	RequestUpdate()
}

type nopHost struct{}

func (nopHost) ExitToMain()    {}
func (nopHost) RequestUpdate() {}

// Session is one emulator instance.
type Session struct {
	cfg  Config
	lcd  display.LCD
	host Host
	roms []roms.Descriptor

	board *Board
	frame display.Frame

	mode       Mode
	selected   int
	current    int
	warning    string
	buttons    Buttons
	frameReady bool
	hasFrame   bool
	autostart  bool
}

// New returns a session showing list on lcd. The machine is built lazily.
func New(cfg Config, lcd display.LCD, host Host, list []roms.Descriptor) *Session {
	cfg.Defaults()
	if host == nil {
		host = nopHost{}
	}
	return &Session{
		cfg:       cfg,
		lcd:       lcd,
		host:      host,
		roms:      list,
		current:   -1,
		autostart: cfg.Dev.Autostart != "",
	}
}

// init builds and powers on the board once.
func (s *Session) init() error {
	if s.board != nil {
		return nil
	}
	m, err := s.cfg.NewMachine(s.cfg.MCU)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotInitialized, err)
	}
	b, err := Attach(m, s.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotInitialized, err)
	}
	if err := b.PowerOn(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotInitialized, err)
	}
	s.board = b
	logger.Logf("emu", "%s at %d Hz, cores: %v", m.MCU().Name, m.Frequency, avr.Cores())
	return nil
}

// Initialized reports whether the machine exists. Until it does every entry
// point except Enter and Launch does nothing.
func (s *Session) Initialized() bool { return s.board != nil }

// Enter starts the emulator subsystem on its menu.
func (s *Session) Enter() error {
	if err := s.init(); err != nil {
		logger.Logf("emu", "%v", err)
		return err
	}
	s.setButtons(0)
	s.mode = Menu
	s.clampSelection()
	s.hasFrame = false
	s.frameReady = false
	s.host.RequestUpdate()

	if s.autostart {
		s.autostart = false
		if i, ok := roms.Find(s.roms, s.cfg.Dev.Autostart); ok {
			s.selected = i
			if err := s.Launch(i); err != nil {
				logger.Logf("emu", "autostart: %v", err)
			}
		} else {
			logger.Logf("emu", "autostart: no rom %q", s.cfg.Dev.Autostart)
		}
	}
	return nil
}

// ExitToMain leaves the subsystem.
func (s *Session) ExitToMain() {
	if s.board != nil {
		s.setButtons(0)
	}
	s.mode = Menu
	s.host.ExitToMain()
}

// Launch starts game i. On any failure the session stays on the menu.
func (s *Session) Launch(i int) error {
	if i < 0 || i >= len(s.roms) {
		return fmt.Errorf("%w: %d", ErrNoROM, i)
	}
	if err := s.init(); err != nil {
		return err
	}
	rom := s.roms[i]
	b := s.board

	b.ResetCartridge()
	s.warning = ""
	if rom.NeedsFX {
		if path, err := b.loadImage(rom, s.cfg.Dev); err != nil {
			logger.Logf("emu", "%v", err)
			s.warning = WarnFXMissing
		} else {
			logger.Logf("emu", "%s: cartridge %s (%s)", rom.Name, path, b.Cart)
		}
	}

	s.setButtons(0)
	b.M.ClearCode()
	if err := ihex.Load(b.M, rom.Hex); err != nil {
		logger.Logf("emu", "%s: %v", rom.Name, err)
		s.warning = ""
		return fmt.Errorf("%s: %w", rom.Name, err)
	}
	if err := b.PowerOn(); err != nil {
		return err
	}

	s.current = i
	s.mode = Game
	s.hasFrame = false
	s.frameReady = false
	s.host.RequestUpdate()
	logger.Logf("emu", "launched %s", rom.Name)
	return nil
}

// stopGame returns from a game to the menu.
func (s *Session) stopGame() {
	s.setButtons(0)
	s.mode = Menu
	s.host.RequestUpdate()
}

func (s *Session) clampSelection() {
	if s.selected >= len(s.roms) {
		s.selected = len(s.roms) - 1
	}
	if s.selected < 0 {
		s.selected = 0
	}
}

func (s *Session) setButtons(held Buttons) {
	s.buttons = held
	s.board.SetButtons(held)
}

// gameButtons maps host keys to Arduboy buttons.
var gameButtons = map[keys.Code]Buttons{
	keys.Key2:    ButtonUp,
	keys.Key8:    ButtonDown,
	keys.Key4:    ButtonLeft,
	keys.Key6:    ButtonRight,
	keys.KeyUp:   ButtonA,
	keys.KeyDown: ButtonB,
}

// ProcessKeys handles one key event. Releasing Exit leaves a game for the
// menu, or the menu for the host.
func (s *Session) ProcessKeys(key keys.Code, pressed, held bool) {
	if s.board == nil {
		return
	}
	if key == keys.KeyExit && !pressed {
		if s.mode == Game {
			s.stopGame()
			return
		}
		s.ExitToMain()
		return
	}

	if s.mode == Menu {
		if !pressed || held {
			return
		}
		switch key {
		case keys.Key2:
			s.selected--
			s.clampSelection()
			s.host.RequestUpdate()
		case keys.Key8:
			s.selected++
			s.clampSelection()
			s.host.RequestUpdate()
		case keys.KeyUp:
			if err := s.Launch(s.selected); err != nil {
				logger.Logf("emu", "launch: %v", err)
			}
			s.host.RequestUpdate()
		}
		return
	}

	mask, ok := gameButtons[key]
	if !ok {
		return
	}
	if pressed {
		s.setButtons(s.buttons | mask)
	} else {
		s.setButtons(s.buttons &^ mask)
	}
}

// Mode returns what the session shows.
func (s *Session) Mode() Mode { return s.mode }

// Selected returns the menu cursor.
func (s *Session) Selected() int { return s.selected }

// Current returns the index of the last launched game, or -1.
func (s *Session) Current() int { return s.current }

// Warning returns the status line message.
func (s *Session) Warning() string { return s.warning }

// ROMs returns the game table.
func (s *Session) ROMs() []roms.Descriptor { return s.roms }

// FrameReady reports whether a game frame waits to be rendered.
func (s *Session) FrameReady() bool { return s.frameReady }

// HasFrame reports whether the game has presented anything yet.
func (s *Session) HasFrame() bool { return s.hasFrame }

// Board returns the emulated hardware, nil before initialisation.
func (s *Session) Board() *Board { return s.board }

// Machine returns the emulated MCU, nil before initialisation.
func (s *Session) Machine() *avr.Machine {
	if s.board == nil {
		return nil
	}
	return s.board.M
}

// Display returns the OLED model, nil before initialisation.
func (s *Session) Display() *oled.Display {
	if s.board == nil {
		return nil
	}
	return s.board.OLED
}

// Cart returns the FX cartridge, nil before initialisation.
func (s *Session) Cart() *fx.Cart {
	if s.board == nil {
		return nil
	}
	return s.board.Cart
}

// Speaker returns the audio source, nil before initialisation.
func (s *Session) Speaker() *Speaker {
	if s.board == nil {
		return nil
	}
	return s.board.Speaker
}
