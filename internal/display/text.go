package display

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	fontSize  = 8
	baseline  = 6
	threshold = 0x70
)

var small = mustFace()

func mustFace() font.Face {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		panic(err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		panic(err)
	}
	return face
}

// TextWidth returns the width of s in pixels.
func TextWidth(s string) int {
	return font.MeasureString(small, s).Ceil()
}

// PrintSmall draws s centred between columns start and end (inclusive) onto
// line. Pixels already lit stay lit. Text that does not fit is clipped at the
// right.
func PrintSmall(line *[Width]byte, s string, start, end int) {
	if start < 0 {
		start = 0
	}
	if end >= Width {
		end = Width - 1
	}
	if end < start || s == "" {
		return
	}

	x := start
	if w := TextWidth(s); w < end-start+1 {
		x += (end - start + 1 - w) / 2
	}

	mask := image.NewAlpha(image.Rect(0, 0, end+1, 8))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: small,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)

	for col := start; col <= end; col++ {
		for y := 0; y < 8; y++ {
			if mask.AlphaAt(col, y).A >= threshold {
				line[col] |= 1 << y
			}
		}
	}
}

// PrintBody draws s centred on body line row.
func (f *Frame) PrintBody(row int, s string) {
	if row < 0 || row >= BodyLines {
		return
	}
	PrintSmall(&f.Body[row], s, 0, Width-1)
}

// PrintStatus draws s centred on the status line.
func (f *Frame) PrintStatus(s string) {
	PrintSmall(&f.Status, s, 0, Width-1)
}
