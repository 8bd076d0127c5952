package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// HoldoutSeries is a holdout prediction to draw next to the importance chart.
type HoldoutSeries struct {
	Title       string
	IDs         []int64
	Truth       []float64
	Predictions []float64
}

// ImportanceBar builds a horizontal bar chart of the scores.
func ImportanceBar(t *lofo.Table, title string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title:    title,
				Subtitle: "base CAPE - excluded CAPE; negative bars mark helpful features",
			},
		),
	)

	names := make([]string, len(t.Records))
	data := make([]opts.BarData, len(t.Records))
	for i, r := range t.Records {
		names[i] = r.Feature
		data[i] = opts.BarData{Name: r.Feature, Value: r.Score}
	}
	bar.SetXAxis(names).AddSeries("score", data)
	bar.XYReversal()
	return bar
}

// HoldoutLine draws truth and prediction over the holdout rows.
func HoldoutLine(h HoldoutSeries) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: h.Title,
			},
		),
	)

	truth := make([]opts.LineData, len(h.Truth))
	preds := make([]opts.LineData, len(h.Predictions))
	for i, v := range h.Truth {
		truth[i] = opts.LineData{Value: v}
	}
	for i, v := range h.Predictions {
		preds[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(h.IDs).
		AddSeries("Actual", truth).
		AddSeries("Predicted", preds)
	return line
}

// RenderHTML writes a page with the importance chart and, when holdout is not nil,
// the holdout fit.
func RenderHTML(w io.Writer, t *lofo.Table, title string, holdout *HoldoutSeries) error {
	if len(t.Records) == 0 {
		return errors.NewValueError("report.RenderHTML", "no records")
	}
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(ImportanceBar(t, title))
	if holdout != nil && len(holdout.Truth) > 0 {
		page.AddCharts(HoldoutLine(*holdout))
	}
	return errors.Wrap(page.Render(w), "report.RenderHTML")
}
