package main

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/shadowP12/visibility-buffer/common"
)

const (
	legendHeight = 40
	legendMargin = 6
)

// heatColor maps t in [0, 1] through blue, green and yellow to red.
func heatColor(t float64) color.RGBA {
	t = common.Clamp(t, 0, 1)
	stops := [...]color.RGBA{
		{0x1a, 0x23, 0x7e, 0xff},
		{0x00, 0x96, 0x88, 0xff},
		{0xfd, 0xd8, 0x35, 0xff},
		{0xd3, 0x2f, 0x2f, 0xff},
	}
	f := t * float64(len(stops)-1)
	i := min(int(f), len(stops)-2)
	w := f - float64(i)
	lerp := func(a, b uint8) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*w + 0.5) }
	a, b := stops[i], stops[i+1]
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 0xff}
}

// renderHeatmap draws the cull map scaled to width pixels with a color ramp legend underneath.
func renderHeatmap(m *CullMap, title string, width int) *image.RGBA {
	width = max(width, m.Width)
	mapHeight := max(width*m.Height/m.Width, 1)

	cells := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			cells.SetRGBA(x, y, heatColor(m.At(x, y)))
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, mapHeight+legendHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0x10, 0x10, 0x10, 0xff}), image.Point{}, draw.Src)
	draw.NearestNeighbor.Scale(img, image.Rect(0, 0, width, mapHeight), cells, cells.Bounds(), draw.Src, nil)

	rampTop := mapHeight + legendMargin
	rampRect := image.Rect(legendMargin, rampTop, width-legendMargin, rampTop+8)
	for x := rampRect.Min.X; x < rampRect.Max.X; x++ {
		c := heatColor(float64(x-rampRect.Min.X) / float64(max(rampRect.Dx()-1, 1)))
		for y := rampRect.Min.Y; y < rampRect.Max.Y; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	baseline := rampRect.Max.Y + basicfont.Face7x13.Ascent + 4
	drawText(d, legendMargin, baseline, "0%")
	right := "100%"
	drawText(d, width-legendMargin-d.MeasureString(right).Ceil(), baseline, right)

	label := fmt.Sprintf("%s  min %.0f%%  mean %.0f%%  max %.0f%%", title, m.Min*100, m.Mean*100, m.Max*100)
	if w := d.MeasureString(label).Ceil(); w < width-2*legendMargin-2*d.MeasureString(right).Ceil() {
		drawText(d, (width-w)/2, baseline, label)
	}
	return img
}

func drawText(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// writeHeatmap encodes the heatmap as a BMP.
func writeHeatmap(w io.Writer, m *CullMap, title string, width int) error {
	return bmp.Encode(w, renderHeatmap(m, title, width))
}
