// Package chart draws aggregated series as bar, line or pie images.
package chart

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/wcharczuk/go-chart/v2"
)

// ErrEmptySeries is returned when there is nothing to draw.
var ErrEmptySeries = errors.New("series has no values to draw")

// Format is the output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts png or svg; empty means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported image format %q (use png|svg)", s)
}

// ContentType returns the MIME type of images in format f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Options control the image size and format.
type Options struct {
	Width  int
	Height int
	Format Format
	Title  string
}

func DefaultOptions() Options {
	return Options{Width: 1024, Height: 512, Format: PNG}
}

// Render draws s according to its chart kind and writes the image to w.
func Render(w io.Writer, s aggregate.Series, opt Options) error {
	if s.Empty() {
		return ErrEmptySeries
	}
	def := DefaultOptions()
	if opt.Width <= 0 {
		opt.Width = def.Width
	}
	if opt.Height <= 0 {
		opt.Height = def.Height
	}
	if opt.Title == "" {
		opt.Title = s.Name
	}
	provider := chart.PNG
	if opt.Format == SVG {
		provider = chart.SVG
	}

	var err error
	switch s.Chart {
	case aggregate.ChartLine:
		err = lineChart(s, opt).Render(provider, w)
	case aggregate.ChartPie:
		var pc chart.PieChart
		pc, err = pieChart(s, opt)
		if err == nil {
			err = pc.Render(provider, w)
		}
	default:
		err = barChart(s, opt).Render(provider, w)
	}
	if err != nil {
		return fmt.Errorf("render %s chart: %w", s.Chart, err)
	}
	return nil
}

// valueRange spans the values and zero, and is never zero-width.
func valueRange(values []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func barChart(s aggregate.Series, opt Options) chart.BarChart {
	bars := make([]chart.Value, len(s.Values))
	for i, v := range s.Values {
		bars[i] = chart.Value{Value: v, Label: s.Labels[i]}
	}
	return chart.BarChart{
		Title:      opt.Title,
		Width:      opt.Width,
		Height:     opt.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis:      chart.YAxis{Range: valueRange(s.Values)},
		Bars:       bars,
	}
}

func lineChart(s aggregate.Series, opt Options) chart.Chart {
	xs := make([]float64, len(s.Values))
	ticks := make([]chart.Tick, len(s.Values))
	for i := range s.Values {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: s.Labels[i]}
	}
	xRange := &chart.ContinuousRange{Min: 0, Max: float64(len(xs) - 1)}
	if len(xs) == 1 {
		xRange = &chart.ContinuousRange{Min: -0.5, Max: 0.5}
	}
	return chart.Chart{
		Title:      opt.Title,
		Width:      opt.Width,
		Height:     opt.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16}},
		XAxis:      chart.XAxis{Ticks: ticks, Range: xRange},
		YAxis:      chart.YAxis{Range: valueRange(s.Values)},
		Series: []chart.Series{chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
			Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2, DotWidth: 3, DotColor: chart.ColorBlue},
		}},
	}
}

// pieChart keeps only positive slices.
func pieChart(s aggregate.Series, opt Options) (chart.PieChart, error) {
	var values []chart.Value
	for i, v := range s.Values {
		if v > 0 {
			values = append(values, chart.Value{Value: v, Label: s.Labels[i]})
		}
	}
	if len(values) == 0 {
		return chart.PieChart{}, errors.New("pie chart needs at least one positive value")
	}
	return chart.PieChart{
		Title:  opt.Title,
		Width:  opt.Width,
		Height: opt.Height,
		Values: values,
	}, nil
}
