// Package charts draws the small PNG charts embedded in the location detail panel.
package charts

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"callpulse/internal/navigation"
)

const (
	Width  = 480
	Height = 260

	margin    = 24
	titleH    = 28
	labelH    = 18
	charWidth = 7 // basicfont.Face7x13 advance
)

var ErrNoBars = errors.New("chart has no bars")

// Bar is one column of a bar chart.
type Bar struct {
	Label string
	Value int
	Color color.RGBA
}

// Palette is the set of colours a chart is drawn with.
type Palette struct {
	Background color.RGBA
	Text       color.RGBA
	Axis       color.RGBA
}

var (
	DarkPalette  = Palette{Background: color.RGBA{17, 24, 39, 255}, Text: color.RGBA{243, 244, 246, 255}, Axis: color.RGBA{75, 85, 99, 255}}
	LightPalette = Palette{Background: color.RGBA{255, 255, 255, 255}, Text: color.RGBA{17, 24, 39, 255}, Axis: color.RGBA{209, 213, 219, 255}}
)

var (
	colorTotal   = color.RGBA{99, 102, 241, 255}
	colorMissed  = color.RGBA{239, 68, 68, 255}
	colorSales   = color.RGBA{34, 197, 94, 255}
	colorService = color.RGBA{59, 130, 246, 255}
	colorOther   = color.RGBA{234, 179, 8, 255}
)

// CallMix returns the bars of a location's call breakdown.
func CallMix(d navigation.LocationDetail) []Bar {
	return []Bar{
		{Label: "Total", Value: d.TotalCalls, Color: colorTotal},
		{Label: "Missed", Value: d.MissedCalls, Color: colorMissed},
		{Label: "Sales", Value: d.SalesCalls, Color: colorSales},
		{Label: "Service", Value: d.ServiceCalls, Color: colorService},
		{Label: "Other", Value: d.OtherCalls, Color: colorOther},
	}
}

// BarChart draws bars scaled to the largest value. Negative values are drawn as zero.
func BarChart(title string, bars []Bar, p Palette) (*image.RGBA, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(p.Background), image.Point{}, draw.Src)
	drawString(img, margin, margin, title, p.Text)

	maxVal := 1
	for _, b := range bars {
		maxVal = max(maxVal, b.Value)
	}

	top := margin + titleH
	baseline := Height - margin - labelH
	plotH := baseline - top - labelH
	slot := (Width - 2*margin) / len(bars)
	barW := slot * 3 / 5

	draw.Draw(img, image.Rect(margin, baseline, Width-margin, baseline+1), image.NewUniform(p.Axis), image.Point{}, draw.Src)

	for i, b := range bars {
		v := max(b.Value, 0)
		h := v * plotH / maxVal
		x0 := margin + i*slot + (slot-barW)/2
		rect := image.Rect(x0, baseline-h, x0+barW, baseline)
		draw.Draw(img, rect, image.NewUniform(b.Color), image.Point{}, draw.Src)

		value := strconv.Itoa(b.Value)
		drawString(img, centered(x0, barW, value), baseline-h-4, value, p.Text)
		drawString(img, centered(x0, barW, b.Label), baseline+labelH-2, b.Label, p.Text)
	}
	return img, nil
}

// WritePNG encodes the chart for title and bars to w.
func WritePNG(w io.Writer, title string, bars []Bar, p Palette) error {
	img, err := BarChart(title, bars, p)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func centered(x0, width int, text string) int {
	return x0 + (width-len(text)*charWidth)/2
}

func drawString(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
