package report

import (
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

var barColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// ImportancePlot draws the scores as horizontal bars, one per feature, in table order
// from the bottom up.
func ImportancePlot(t *lofo.Table, title string) (*plot.Plot, error) {
	if len(t.Records) == 0 {
		return nil, errors.NewValueError("report.ImportancePlot", "no records")
	}
	values := make(plotter.Values, len(t.Records))
	names := make([]string, len(t.Records))
	for i, r := range t.Records {
		values[i] = r.Score
		names[i] = r.Feature
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "base CAPE - excluded CAPE"
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, errors.Wrap(err, "report.ImportancePlot")
	}
	bars.Horizontal = true
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

func plotHeight(n int) vg.Length {
	return vg.Length(n)*0.35*vg.Inch + 1.5*vg.Inch
}

// SavePlot writes the importance plot to path. The format follows the extension
// (png, svg, pdf, ...).
func SavePlot(t *lofo.Table, path, title string) error {
	p, err := ImportancePlot(t, title)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.Save(6*vg.Inch, plotHeight(len(t.Records)), path), "save plot %s", path)
}

// WritePlot writes the importance plot to w in format ("png", "svg", ...).
func WritePlot(w io.Writer, t *lofo.Table, title, format string) error {
	p, err := ImportancePlot(t, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, plotHeight(len(t.Records)), strings.ToLower(format))
	if err != nil {
		return errors.Wrap(err, "report.WritePlot")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "report.WritePlot")
}

// PlotFormat returns the format SavePlot will use for path.
func PlotFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
