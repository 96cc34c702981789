package avr

import "fmt"

// Port models one 8-bit GPIO port (DDRx/PORTx/PINx).
//
// The level a pin presents to the outside world is its PORT bit when the pin
// is an output, and high otherwise (inputs idle at the pull-up level). Out
// carries the whole PORT register on every write, Pin[n] carries the level of
// pin n and only notifies on transitions. In is driven by the host with the
// levels of externally connected inputs (buttons).
type Port struct {
	Name byte

	ddr      uint8
	port     uint8
	external uint8

	Out *Signal
	Pin [8]*Signal
	In  *Signal
}

func newPort(name byte) *Port {
	p := &Port{
		Name:     name,
		external: 0xFF,
		Out:      NewSignal(fmt.Sprintf("PORT%c", name), false, 0),
		In:       NewSignal(fmt.Sprintf("PIN%c.in", name), false, 0xFF),
	}
	for i := range p.Pin {
		p.Pin[i] = NewSignal(fmt.Sprintf("P%c%d", name, i), true, 1)
	}
	p.In.OnEdge(func(v uint32) { p.external = uint8(v) })
	return p
}

// DDR returns the data direction register.
func (p *Port) DDR() uint8 { return p.ddr }

// PORT returns the output register.
func (p *Port) PORT() uint8 { return p.port }

// PIN returns what the core reads back from PINx.
func (p *Port) PIN() uint8 {
	return (p.port & p.ddr) | (p.external &^ p.ddr)
}

// Level returns the externally visible level of pin n.
func (p *Port) Level(n uint8) bool {
	return p.levels()&(1<<n) != 0
}

func (p *Port) levels() uint8 {
	return (p.port & p.ddr) | ^p.ddr
}

// WritePORT is called by the core on a store to PORTx.
func (p *Port) WritePORT(v uint8) {
	p.port = v
	p.Out.Raise(uint32(v))
	p.raisePins()
}

// WriteDDR is called by the core on a store to DDRx.
func (p *Port) WriteDDR(v uint8) {
	p.ddr = v
	p.raisePins()
}

// TogglePIN implements the "write 1 to PINx toggles PORTx" behaviour.
func (p *Port) TogglePIN(v uint8) {
	p.WritePORT(p.port ^ v)
}

func (p *Port) raisePins() {
	lv := p.levels()
	for i := uint8(0); i < 8; i++ {
		p.Pin[i].Raise(uint32(lv>>i) & 1)
	}
}

func (p *Port) reset() {
	p.ddr = 0
	p.port = 0
	p.Out.set(0)
	p.raisePins()
}
