// Package report draws diagnostic plots of a training set.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

// ErrNoPoints is returned when there is nothing to plot.
var ErrNoPoints = errors.New("no points to plot")

// Default image size.
const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 8 * vg.Inch
)

var (
	presenceColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	absenceColor  = color.RGBA{R: 127, G: 127, B: 127, A: 160}
)

// Scatter plots presence and pseudo-absence points on longitude/latitude
// axes. Pseudo-absences are drawn first so presences stay visible.
func Scatter(points []field.Point, title string) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	presence := make(plotter.XYs, 0, len(points))
	absence := make(plotter.XYs, 0, len(points))
	for _, p := range points {
		xy := plotter.XY{X: p.Lon, Y: p.Lat}
		if p.Label == field.Presence {
			presence = append(presence, xy)
		} else {
			absence = append(absence, xy)
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude (deg)"
	p.Y.Label.Text = "Latitude (deg)"
	p.Add(plotter.NewGrid())

	layers := []struct {
		name  string
		xys   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{fmt.Sprintf("pseudo-absence (%d)", len(absence)), absence, absenceColor, draw.CrossGlyph{}},
		{fmt.Sprintf("presence (%d)", len(presence)), presence, presenceColor, draw.CircleGlyph{}},
	}
	for _, l := range layers {
		if len(l.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(l.xys)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s layer: %w", l.name, err)
		}
		s.GlyphStyle.Color = l.color
		s.GlyphStyle.Shape = l.shape
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(l.name, s)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// SaveScatter writes the scatter plot to path. The image format follows
// the file extension (png, svg, pdf, ...).
func SaveScatter(path string, points []field.Point, title string) error {
	p, err := Scatter(points, title)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
