// Package display holds the page-organised buffers the emulator renders into
// and the LCD the buffers are blitted to.
//
// The LCD is 128 columns wide. Its top page is a separate status line; the
// remaining seven pages are the body. Every byte is one column of eight
// pixels, least significant bit at the top.
package display

import (
	"hash/crc32"
	"image"
	"image/color"
	"io"
	"strings"
)

const (
	Width     = 128
	BodyLines = 7
	Pages     = BodyLines + 1
	Height    = Pages * 8
)

// Frame is one screenful.
type Frame struct {
	Status [Width]byte
	Body   [BodyLines][Width]byte
}

// LCD is the panel the frame is presented on.
type LCD interface {
	BlitStatusLine(f *Frame)
	BlitFullScreen(f *Frame)
}

// Clear blanks every line.
func (f *Frame) Clear() {
	*f = Frame{}
}

// Page returns the line for LCD page n: 0 is the status line, 1 to BodyLines
// are the body.
func (f *Frame) Page(n int) *[Width]byte {
	if n == 0 {
		return &f.Status
	}
	return &f.Body[n-1]
}

// Pixel reports whether the pixel at x, y is lit.
func (f *Frame) Pixel(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return f.Page(y/8)[x]&(1<<(y%8)) != 0
}

// Blank reports whether no pixel is lit.
func (f *Frame) Blank() bool {
	return *f == Frame{}
}

// CRC32 is a checksum of the page bytes, status line first.
func (f *Frame) CRC32() uint32 {
	h := crc32.NewIEEE()
	h.Write(f.Status[:])
	for i := range f.Body {
		h.Write(f.Body[i][:])
	}
	return h.Sum32()
}

// Image renders the frame with lit pixels in fg, scaled by an integer
// factor.
func (f *Frame) Image(fg, bg color.RGBA, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, Width*scale, Height*scale))
	for y := 0; y < Height*scale; y++ {
		for x := 0; x < Width*scale; x++ {
			c := bg
			if f.Pixel(x/scale, y/scale) {
				c = fg
			}
			i := img.PixOffset(x, y)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
	return img
}

// WriteASCII draws the frame with half block characters, two pixel rows per
// text line. step skips columns so that the picture fits narrow terminals.
func (f *Frame) WriteASCII(w io.Writer, step int) error {
	if step < 1 {
		step = 1
	}
	var b strings.Builder
	for y := 0; y < Height; y += 2 {
		for x := 0; x < Width; x += step {
			top, bottom := f.Pixel(x, y), f.Pixel(x, y+1)
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ReverseBits mirrors the pixel order of one column byte.
func ReverseBits(v byte) byte {
	v = v>>4 | v<<4
	v = (v&0xCC)>>2 | (v&0x33)<<2
	v = (v&0xAA)>>1 | (v&0x55)<<1
	return v
}

// Orientation is how controller memory maps to the panel.
type Orientation struct {
	FlipX  bool
	FlipY  bool
	Invert bool
}

// Transform copies controller memory into f. Page 0 lands on the status line.
// A vertical flip mirrors the page order as well as the bits in each byte.
func (o Orientation) Transform(vram *[Pages][Width]byte, f *Frame) {
	for page := 0; page < Pages; page++ {
		src := page
		if o.FlipY {
			src = Pages - 1 - page
		}
		dst := f.Page(page)
		for col := 0; col < Width; col++ {
			sc := col
			if o.FlipX {
				sc = Width - 1 - col
			}
			v := vram[src][sc]
			if o.FlipY {
				v = ReverseBits(v)
			}
			if o.Invert {
				v = ^v
			}
			dst[col] = v
		}
	}
}
