// Package chart renders the amplitude-versus-frequency chart of a sweep.
package chart

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
)

const (
	dpi = 96

	defaultWidth    = 1000
	defaultHeight   = 700
	defaultInfoBar  = 48
	defaultFontSize = 10.0
	defaultYMax     = 4.0 // Vpp

	defaultDatetimeFormat = time.DateTime
)

var (
	curveColor  = color.RGBA{B: 200, A: 255}
	latestColor = color.RGBA{R: 220, A: 255}
	cutoffColor = color.RGBA{R: 200, G: 120, A: 255}
)

// Config holds the chart appearance. Zero values are replaced by defaults.
type Config struct {
	Device string // shown in the info bar

	Width   int     // chart width in pixels
	Height  int     // chart height in pixels, without the info bar
	InfoBar int     // info bar height in pixels
	YMax    float64 // upper bound of the amplitude axis, expanded if exceeded

	FontSize       float64
	DatetimeFormat string
	Location       *time.Location
}

// Chart draws "Vpp vs kHz" with a logarithmic frequency axis and an info bar.
// Each Update re-renders the whole chart to its output file.
type Chart struct {
	path   string
	format Format
	config Config

	mu       sync.Mutex
	analysis *sweep.Analysis
}

// New creates a chart written to path. The image format follows the file extension.
func New(path string, config Config) (*Chart, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.InfoBar == 0 {
		config.InfoBar = defaultInfoBar
	}
	if config.YMax == 0 {
		config.YMax = defaultYMax
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	return &Chart{path: path, format: format, config: config}, nil
}

// Path returns the output file of the chart
func (c *Chart) Path() string {
	return c.path
}

// SetAnalysis adds the -3 dB result to the chart
func (c *Chart) SetAnalysis(a sweep.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analysis = &a
}

// Update re-renders the chart with the point at index as the latest measurement
func (c *Chart) Update(ctx context.Context, res *sweep.Result, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := c.Render(res, index)
	if err != nil {
		return err
	}

	return writeImage(c.path, c.format, img)
}

// Render draws the chart. Amplitudes not measured yet are drawn as zero.
func (c *Chart) Render(res *sweep.Result, index int) (*image.RGBA, error) {
	if res.Len() == 0 {
		return nil, fmt.Errorf("rendering chart: %w", sweep.ErrEmptyPlan)
	}
	if index < 0 || index >= res.Len() {
		return nil, fmt.Errorf("rendering chart: index %d out of range [0, %d)", index, res.Len())
	}

	c.mu.Lock()
	analysis := c.analysis
	c.mu.Unlock()

	p, err := c.newPlot(res, index, analysis)
	if err != nil {
		return nil, fmt.Errorf("building plot: %w", err)
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(pixels(c.config.Width), pixels(c.config.Height)),
		vgimg.UseDPI(dpi))
	p.Draw(vgdraw.New(canvas))

	plotImg := canvas.Image()
	bounds := plotImg.Bounds()

	img := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()+c.config.InfoBar))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, bounds.Sub(bounds.Min), plotImg, bounds.Min, draw.Src)

	ann, err := newAnnotator(annotatorConfig{
		Device:         c.config.Device,
		FontSize:       c.config.FontSize,
		DatetimeFormat: c.config.DatetimeFormat,
		Location:       c.config.Location,
		InfoBar:        c.config.InfoBar,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.drawInfoBar(img, res, analysis); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

func (c *Chart) newPlot(res *sweep.Result, index int, analysis *sweep.Analysis) (*plot.Plot, error) {
	start, stop := res.Frequencies[0], res.Frequencies[res.Len()-1]

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d kHz : %.2f Vpp", int64(res.Frequencies[index]), res.Amplitudes[index])
	p.X.Label.Text = "kHz"
	p.Y.Label.Text = "Vpp"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = frequencyTicks{}

	grid := plotter.NewGrid()
	grid.Vertical.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}
	p.Add(grid)

	xys := make(plotter.XYs, res.Len())
	for i, f := range res.Frequencies {
		xys[i].X = f
		xys[i].Y = res.Amplitudes[i]
	}

	curve, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("creating curve: %w", err)
	}
	curve.Color = curveColor
	curve.Width = vg.Points(1.5)
	p.Add(curve)

	latest, err := plotter.NewScatter(plotter.XYs{xys[index]})
	if err != nil {
		return nil, fmt.Errorf("creating marker: %w", err)
	}
	latest.GlyphStyle.Color = latestColor
	latest.GlyphStyle.Radius = vg.Points(3)
	p.Add(latest)

	if analysis != nil && analysis.Reference > 0 {
		level, err := plotter.NewLine(plotter.XYs{{X: start, Y: analysis.Cutoff}, {X: stop, Y: analysis.Cutoff}})
		if err != nil {
			return nil, fmt.Errorf("creating cutoff level: %w", err)
		}
		level.Color = cutoffColor
		level.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(level)
	}

	// fixed axes, set after Add which widens them to the data
	p.X.Min, p.X.Max = start, stop
	p.Y.Min = 0
	p.Y.Max = math.Max(c.config.YMax, floats.Max(res.Amplitudes)*1.05)

	return p, nil
}

func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / dpi
}
