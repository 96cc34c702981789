package fx

import (
	"sort"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
)

// Thresholds tune the chip select detector. They were picked against the
// cartridge images that were tried and may need changing for others.
type Thresholds struct {
	// number of most recent probe observations that are scored
	Window int
	// observations needed before anything is committed
	MinSamples int
	// hits the winning pin needs
	MinScore int
}

// DefaultThresholds are the values used unless a caller overrides them.
var DefaultThresholds = Thresholds{Window: 8, MinSamples: 3, MinScore: 2}

// PortSample is the output state of one GPIO port at a probe.
type PortSample struct {
	Name byte
	DDR  uint8
	Out  uint8
}

// Sample snapshots every port of m.
func Sample(m *avr.Machine) []PortSample {
	ports := m.Ports()
	s := make([]PortSample, 0, len(ports))
	for _, p := range ports {
		s = append(s, PortSample{Name: p.Name, DDR: p.DDR(), Out: p.PORT()})
	}
	return s
}

// IsProbe reports whether b is an opcode a game sends to find out whether a
// cartridge is present.
func IsProbe(b uint8) bool {
	switch b {
	case OpJEDECID, OpReleasePD, OpLegacyID, OpPowerDown:
		return true
	}
	return false
}

// Detector finds the chip select line of a cartridge whose wiring is unknown.
// At every probe byte the caller hands over the port state; every output that
// is driven low at that moment is a candidate. The pin that is low most often
// wins once it strictly beats the runner up.
type Detector struct {
	t       Thresholds
	exclude map[avr.Pin]bool
	history [][]avr.Pin
}

// NewDetector returns a detector that never picks any of the excluded pins.
func NewDetector(t Thresholds, exclude ...avr.Pin) *Detector {
	if t.Window < 1 {
		t.Window = DefaultThresholds.Window
	}
	d := &Detector{t: t, exclude: make(map[avr.Pin]bool)}
	for _, p := range exclude {
		d.exclude[p] = true
	}
	return d
}

// Thresholds returns the tuning in use.
func (d *Detector) Thresholds() Thresholds { return d.t }

// Reset forgets all observations.
func (d *Detector) Reset() {
	d.history = d.history[:0]
}

// Samples returns the number of observations in the window.
func (d *Detector) Samples() int { return len(d.history) }

// Observe scores one probe. It returns the chip select pin once a decision
// can be made.
func (d *Detector) Observe(ports []PortSample) (avr.Pin, bool) {
	var cands []avr.Pin
	for _, p := range ports {
		low := p.DDR &^ p.Out
		for bit := uint8(0); bit < 8; bit++ {
			if low&(1<<bit) == 0 {
				continue
			}
			pin := avr.Pin{Port: p.Name, Bit: bit}
			if !d.exclude[pin] {
				cands = append(cands, pin)
			}
		}
	}

	d.history = append(d.history, cands)
	if len(d.history) > d.t.Window {
		d.history = d.history[len(d.history)-d.t.Window:]
	}
	if len(d.history) < d.t.MinSamples {
		return avr.Pin{}, false
	}

	score := make(map[avr.Pin]int)
	for _, obs := range d.history {
		for _, p := range obs {
			score[p]++
		}
	}
	if len(score) == 0 {
		return avr.Pin{}, false
	}

	ranked := make([]avr.Pin, 0, len(score))
	for p := range score {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if score[a] != score[b] {
			return score[a] > score[b]
		}
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		return a.Bit < b.Bit
	})

	top := score[ranked[0]]
	runnerUp := 0
	if len(ranked) > 1 {
		runnerUp = score[ranked[1]]
	}
	if top > runnerUp && top >= d.t.MinScore {
		return ranked[0], true
	}
	return avr.Pin{}, false
}
