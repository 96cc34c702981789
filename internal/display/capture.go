package display

import "sync"

// Capture is an LCD that keeps the last blitted frame in memory. The window
// and the headless runner both present from it.
type Capture struct {
	mu     sync.Mutex
	frame  Frame
	serial int

	StatusBlits int
	FullBlits   int
}

// BlitStatusLine implements LCD.
func (c *Capture) BlitStatusLine(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Status = f.Status
	c.StatusBlits++
	c.serial++
}

// BlitFullScreen implements LCD.
func (c *Capture) BlitFullScreen(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Body = f.Body
	c.FullBlits++
	c.serial++
}

// Snapshot returns a copy of the panel contents and a counter that changes
// with every blit.
func (c *Capture) Snapshot() (Frame, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.serial
}
