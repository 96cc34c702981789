package emu

import (
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/oled"
)

// SliceMicros is the real time one call to TimeSlice10ms stands for.
const SliceMicros = 10_000

// TimeSlice10ms runs the game for 10ms of machine time. A slice that
// overruns is not made up for; the next one starts from wherever the cycle
// counter is.
func (s *Session) TimeSlice10ms() {
	if s.board == nil || s.mode != Game {
		return
	}
	m := s.board.M
	target := m.Cycle + m.UsecToCycles(SliceMicros)

	for (m.State == avr.Running || m.State == avr.Sleeping) && m.Cycle < target && s.mode == Game {
		m.Run()
	}
	s.board.Speaker.Flush(m.Cycle)

	if m.State.Halted() {
		logger.Logf("emu", "machine %s at cycle %d", m.State, m.Cycle)
		s.warning = WarnHalted
		s.stopGame()
		return
	}

	// the dirty flag is left for Render to clear
	if s.board.OLED.Flag(oled.FlagDirty) {
		s.frameReady = true
		s.host.RequestUpdate()
	}
}
