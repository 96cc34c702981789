package emu

import (
	"sync"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
)

const (
	// SampleRate of the speaker PCM stream.
	SampleRate = 48000
	// ring capacity, a power of two (~680ms)
	speakerBuffer = 1 << 15
	amplitude     = 6000
)

// Speaker turns the piezo pins (PC6 and PC7, driven in opposition) into
// 16-bit mono PCM. Samples are produced on the emulation side and pulled by
// the audio player from another goroutine.
type Speaker struct {
	mu sync.Mutex

	freq     uint64
	level    bool
	lastEdge uint64
	started  bool
	origin   uint64
	k        uint64

	buf  []int16
	head int
	tail int
}

// NewSpeaker returns a speaker clocked like m.
func NewSpeaker(m *avr.Machine) *Speaker {
	return &Speaker{
		freq: uint64(m.Frequency),
		buf:  make([]int16, speakerBuffer),
	}
}

// Attach listens to port C of m.
func (s *Speaker) Attach(m *avr.Machine) error {
	p, ok := m.Port('C')
	if !ok {
		return ErrNotAttached
	}
	p.Out.OnEdge(func(v uint32) {
		s.Edge(m.Cycle, uint8(v))
	})
	return nil
}

// Edge records a write of v to PORTC at cycle.
func (s *Speaker) Edge(cycle uint64, v uint8) {
	level := (v>>6^v>>7)&1 != 0
	s.mu.Lock()
	defer s.mu.Unlock()
	if level == s.level {
		return
	}
	s.advance(cycle)
	s.level = level
	s.lastEdge = cycle
}

// Flush produces samples up to cycle.
func (s *Speaker) Flush(cycle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(cycle)
}

// Reset drops buffered samples and restarts the sample clock.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head, s.tail = 0, 0
	s.started = false
	s.level = false
}

func (s *Speaker) advance(now uint64) {
	if !s.started || now < s.origin {
		s.origin, s.k, s.started = now, 0, true
		s.lastEdge = now
	}
	// more than a second behind: start over instead of generating it all
	if next := s.origin + s.k*s.freq/SampleRate; now > next && now-next > s.freq {
		s.origin, s.k = now, 0
	}
	for {
		at := s.origin + s.k*s.freq/SampleRate
		if at > now {
			return
		}
		s.push(s.sample(at))
		s.k++
	}
}

func (s *Speaker) sample(at uint64) int16 {
	// a pin that stopped moving is silence, not a DC offset
	if at-s.lastEdge > s.freq/50 {
		return 0
	}
	if s.level {
		return amplitude
	}
	return -amplitude
}

func (s *Speaker) push(v int16) {
	next := (s.head + 1) & (len(s.buf) - 1)
	if next == s.tail {
		// full: drop the oldest
		s.tail = (s.tail + 1) & (len(s.buf) - 1)
	}
	s.buf[s.head] = v
	s.head = next
}

// Buffered returns the number of samples ready.
func (s *Speaker) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.head - s.tail) & (len(s.buf) - 1)
}

// Pull copies up to max samples out of the ring.
func (s *Speaker) Pull(max int) []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max <= 0 || s.head == s.tail {
		return nil
	}
	out := make([]int16, 0, max)
	for len(out) < max && s.tail != s.head {
		out = append(out, s.buf[s.tail])
		s.tail = (s.tail + 1) & (len(s.buf) - 1)
	}
	return out
}
