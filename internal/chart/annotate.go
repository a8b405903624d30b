package chart

import (
	"fmt"
	"image"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
)

const (
	leftMargin = 10
	spacing    = 1.3
)

type annotatorConfig struct {
	Device         string
	FontSize       float64
	DatetimeFormat string
	Location       *time.Location
	InfoBar        int
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

// drawInfoBar writes the run details into the bottom border of the image
func (a *annotator) drawInfoBar(img *image.RGBA, res *sweep.Result, analysis *sweep.Analysis) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	started := res.Started.In(a.config.Location)

	lines := []string{
		fmt.Sprintf("Run: %s; Device: %s; Started: %s",
			res.RunID, a.config.Device, started.Format(a.config.DatetimeFormat)),
		fmt.Sprintf("Band: %s - %s; Points: %d; %s",
			sweep.HumanHz(res.Frequencies[0]), sweep.HumanHz(res.Frequencies[res.Len()-1]), res.Len(), cutoffText(analysis)),
	}

	metrics := a.fontFace.Metrics()
	lineHeight := a.context.PointToFixed(a.config.FontSize * spacing).Round()

	// first baseline, lines centred vertically in the bottom border
	textHeight := lineHeight * len(lines)
	top := img.Bounds().Max.Y - a.config.InfoBar + (a.config.InfoBar-textHeight)/2
	y := top + metrics.Ascent.Round()

	for _, line := range lines {
		if _, err := a.context.DrawString(line, freetype.Pt(leftMargin, y)); err != nil {
			return fmt.Errorf("drawing info text: %w", err)
		}
		y += lineHeight
	}

	return nil
}

func cutoffText(analysis *sweep.Analysis) string {
	switch {
	case analysis == nil:
		return "-3 dB: pending"
	case analysis.Found:
		return fmt.Sprintf("-3 dB: %s (%.3f Vpp of %.3f Vpp)", sweep.HumanHz(analysis.CutoffFrequency), analysis.Cutoff, analysis.Reference)
	default:
		return fmt.Sprintf("-3 dB: above %s", sweep.HumanHz(analysis.StopFrequency))
	}
}
