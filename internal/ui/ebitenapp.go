package ui

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/display"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/emu"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/keys"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// ticks per second; one emulation slice per tick
const tps = 1_000_000 / emu.SliceMicros

// ticks a key must stay down before held events start, and between them
const (
	holdDelay = 50
	holdEvery = 10
)

type binding struct {
	key  ebiten.Key
	code keys.Code
}

// keyboard → keypad
var bindings = []binding{
	{ebiten.KeyArrowUp, keys.Key2},
	{ebiten.KeyArrowDown, keys.Key8},
	{ebiten.KeyArrowLeft, keys.Key4},
	{ebiten.KeyArrowRight, keys.Key6},
	{ebiten.KeyZ, keys.KeyUp},
	{ebiten.KeyEnter, keys.KeyUp},
	{ebiten.KeyX, keys.KeyDown},
	{ebiten.KeyEscape, keys.KeyExit},
	{ebiten.KeyBackspace, keys.KeyExit},
}

// App hosts a session in an ebiten window. It is the session's Host: exit
// requests close the window and update requests schedule a Render.
type App struct {
	cfg Config
	s   *emu.Session
	lcd *display.Capture

	tex    *ebiten.Image
	serial int

	pending bool
	quit    bool
	paused  bool
	fast    bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *speakerStream
}

// NewApp prepares the window. The session is handed over in Run since it
// needs the App as its host.
func NewApp(cfg Config, lcd *display.Capture) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(display.Width*cfg.Scale, display.Height*cfg.Scale)
	ebiten.SetTPS(tps)
	return &App{cfg: cfg, lcd: lcd, serial: -1}
}

// ExitToMain implements emu.Host.
func (a *App) ExitToMain() { a.quit = true }

// RequestUpdate implements emu.Host.
func (a *App) RequestUpdate() { a.pending = true }

// Run enters s and blocks until the window closes.
func (a *App) Run(s *emu.Session) error {
	a.s = s
	if err := s.Enter(); err != nil {
		return err
	}
	a.startAudio()
	defer func() {
		if a.audioPlayer != nil {
			a.audioPlayer.Close()
		}
	}()
	if err := ebiten.RunGame(a); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}

func (a *App) startAudio() {
	a.audioCtx = audio.NewContext(emu.SampleRate)
	a.audioSrc = &speakerStream{s: a.s, muted: &a.cfg.Muted, lowLatency: a.cfg.AudioLowLatency}
	p, err := a.audioCtx.NewPlayer(a.audioSrc)
	if err != nil {
		logger.Logf("ui", "audio: %v", err)
		return
	}
	a.audioPlayer = p
	a.applyPlayerBufferSize()
	a.audioPlayer.Play()
}

func (a *App) Update() error {
	for _, b := range bindings {
		switch {
		case inpututil.IsKeyJustPressed(b.key):
			a.s.ProcessKeys(b.code, true, false)
		case inpututil.IsKeyJustReleased(b.key):
			a.s.ProcessKeys(b.code, false, false)
		default:
			if d := inpututil.KeyPressDuration(b.key); d > holdDelay && d%holdEvery == 0 {
				a.s.ProcessKeys(b.code, true, true)
			}
		}
	}
	if a.quit {
		return ebiten.Termination
	}

	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	// Mute toggle (M)
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		a.cfg.Muted = !a.cfg.Muted
	}

	// Fast-forward (Tab)
	fast := ebiten.IsKeyPressed(ebiten.KeyTab)
	if fast != a.fast {
		a.fast = fast
		a.applyPlayerBufferSize()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if err := a.saveScreenshot(); err != nil {
			logger.Logf("ui", "screenshot: %v", err)
		}
	}

	if !a.paused {
		slices := 1
		if a.fast {
			slices = 5
		}
		for i := 0; i < slices; i++ {
			a.s.TimeSlice10ms()
		}
	}

	if a.pending {
		a.pending = false
		a.s.Render()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(display.Width, display.Height)
	}
	if f, serial := a.lcd.Snapshot(); serial != a.serial {
		a.serial = serial
		a.tex.WritePixels(f.Image(a.cfg.Foreground, a.cfg.Background, 1).Pix)
	}
	screen.DrawImage(a.tex, nil)
	if a.paused {
		ebitenutil.DebugPrint(screen, "PAUSED")
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return display.Width, display.Height }

func (a *App) saveScreenshot() error {
	f, _ := a.lcd.Snapshot()
	img := f.Image(a.cfg.Foreground, a.cfg.Background, a.cfg.Scale)
	ts := time.Now().Format("20060102_150405")
	name := filepath.Join(a.cfg.ScreenshotDir, fmt.Sprintf("screenshot_%s.png", ts))
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return err
	}
	logger.Logf("ui", "wrote %s", name)
	return nil
}
