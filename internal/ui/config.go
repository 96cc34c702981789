package ui

import "image/color"

// Config contains window/input/audio related settings.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
	// panel colours
	Foreground color.RGBA
	Background color.RGBA
	// Audio buffering
	AudioBufferMs   int  // desired player buffer in ms (approx)
	AudioLowLatency bool // hard-cap buffering for minimal latency
	Muted           bool
	ScreenshotDir   string
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "arduboy"
	}
	if c.Scale <= 0 {
		c.Scale = 4
	}
	if c.Foreground == (color.RGBA{}) {
		c.Foreground = color.RGBA{0xE8, 0xF4, 0xFF, 0xFF}
	}
	if c.Background == (color.RGBA{}) {
		c.Background = color.RGBA{0x08, 0x08, 0x10, 0xFF}
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 40
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "."
	}
}
