package emu

import (
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/display"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/oled"
)

const (
	menuTitle  = "Arduboy AVR"
	menuFooter = "EXIT=BACK"
	menuEmpty  = "No ROMs"
	menuWindow = 5
	// longest menu line, cursor included
	menuLineLen = 19
)

// Render presents the menu or the latest game frame. Calling it again with
// nothing new changes nothing on the LCD.
func (s *Session) Render() {
	if s.board == nil {
		return
	}
	if s.mode == Menu {
		s.renderMenu()
		return
	}

	if !s.frameReady {
		if !s.hasFrame {
			s.renderBlank()
			s.hasFrame = true
		}
		return
	}

	s.renderDisplay()
	s.frameReady = false
	s.hasFrame = true
	s.board.OLED.SetFlag(oled.FlagDirty, false)
}

func (s *Session) blit() {
	s.lcd.BlitStatusLine(&s.frame)
	s.lcd.BlitFullScreen(&s.frame)
}

func (s *Session) renderBlank() {
	s.frame.Clear()
	s.blit()
}

func (s *Session) renderDisplay() {
	d := s.board.OLED
	if !d.Flag(oled.FlagDisplayOn) {
		s.renderBlank()
		return
	}
	o := display.Orientation{
		FlipX:  d.Flag(oled.FlagSegmentRemap0),
		FlipY:  d.Flag(oled.FlagCOMScanNormal),
		Invert: d.Flag(oled.FlagInverted),
	}
	o.Transform(&d.VRAM, &s.frame)
	s.blit()
}

// MenuWindow returns the first game index shown and the number of rows.
func MenuWindow(total, selected int) (start, rows int) {
	if total > menuWindow {
		start = selected - menuWindow/2
		if start < 0 {
			start = 0
		}
		if start > total-menuWindow {
			start = total - menuWindow
		}
	}
	rows = total
	if rows > menuWindow {
		rows = menuWindow
	}
	return start, rows
}

// MenuLine is the text of one game row.
func MenuLine(name string, selected bool) string {
	cursor := " "
	if selected {
		cursor = ">"
	}
	line := []rune(cursor + name)
	if len(line) > menuLineLen {
		line = line[:menuLineLen]
	}
	return string(line)
}

func (s *Session) renderMenu() {
	s.frame.Clear()
	if s.warning != "" {
		s.frame.PrintStatus(s.warning)
	}
	s.frame.PrintBody(0, menuTitle)

	if len(s.roms) == 0 {
		s.frame.PrintBody(2, menuEmpty)
	} else {
		start, rows := MenuWindow(len(s.roms), s.selected)
		for i := 0; i < rows; i++ {
			idx := start + i
			s.frame.PrintBody(i+1, MenuLine(s.roms[idx].Name, idx == s.selected))
		}
	}

	s.frame.PrintBody(6, menuFooter)
	s.blit()
}
