package avr

// Handler is called synchronously whenever a Signal is raised.
type Handler func(value uint32)

type notify struct {
	id int
	fn Handler
}

// Signal is a named IRQ line between the core, its peripherals and whatever
// the host attaches to them. A filtered signal only notifies when its value
// changes; an unfiltered one notifies on every Raise (SPI bytes repeat).
type Signal struct {
	Name     string
	value    uint32
	filtered bool
	handlers []notify
	nextID   int
}

// NewSignal creates a signal with an initial value.
func NewSignal(name string, filtered bool, initial uint32) *Signal {
	return &Signal{Name: name, filtered: filtered, value: initial}
}

// Handle identifies one registration on a Signal.
type Handle struct {
	sig *Signal
	id  int
}

// Valid reports whether the handle refers to a live registration.
func (h Handle) Valid() bool { return h.sig != nil }

// Remove unregisters the handler. Removing twice is harmless.
func (h *Handle) Remove() {
	if h.sig == nil {
		return
	}
	s := h.sig
	for i, n := range s.handlers {
		if n.id == h.id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			break
		}
	}
	h.sig = nil
}

// OnEdge registers fn to be called on every notification of s.
func (s *Signal) OnEdge(fn Handler) Handle {
	s.nextID++
	s.handlers = append(s.handlers, notify{id: s.nextID, fn: fn})
	return Handle{sig: s, id: s.nextID}
}

// Value returns the last raised value.
func (s *Signal) Value() uint32 { return s.value }

// Raise sets the value and notifies the handlers.
func (s *Signal) Raise(v uint32) {
	if s.filtered && s.value == v {
		return
	}
	s.value = v
	if len(s.handlers) == 0 {
		return
	}
	// handlers may rebind other registrations while we dispatch
	hs := make([]notify, len(s.handlers))
	copy(hs, s.handlers)
	for _, n := range hs {
		n.fn(v)
	}
}

// set changes the value without notifying anyone; used by reset paths.
func (s *Signal) set(v uint32) { s.value = v }
