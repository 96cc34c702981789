package avr

// SPI models the master SPI peripheral. A store to SPDR by the core raises
// Out with the transmitted byte; whichever slave answers raises In, which
// latches the received byte into SPDR for the core to read back.
type SPI struct {
	Out *Signal
	In  *Signal

	spdr uint8
}

func newSPI() *SPI {
	s := &SPI{
		Out: NewSignal("SPI.out", false, 0),
		In:  NewSignal("SPI.in", false, 0xFF),
	}
	s.In.OnEdge(func(v uint32) { s.spdr = uint8(v) })
	return s
}

// Transmit sends b on MOSI. Nobody answering leaves 0xFF in SPDR.
func (s *SPI) Transmit(b uint8) {
	s.spdr = 0xFF
	s.Out.Raise(uint32(b))
}

// Data returns the SPDR contents.
func (s *SPI) Data() uint8 { return s.spdr }

func (s *SPI) reset() {
	s.spdr = 0
}
