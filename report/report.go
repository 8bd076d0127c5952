// Package report writes LOFO importance tables as CSV, JSON, static plots and HTML charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

var csvHeader = []string{"feature", "score", "excluded_score", "beneficial", "duration_seconds"}

// WriteCSV writes one row per record in table order.
func WriteCSV(w io.Writer, t *lofo.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "report.WriteCSV")
	}
	for _, r := range t.Records {
		row := []string{
			r.Feature,
			strconv.FormatFloat(r.Score, 'g', -1, 64),
			strconv.FormatFloat(r.ExcludedScore, 'g', -1, 64),
			strconv.FormatBool(r.Beneficial()),
			strconv.FormatFloat(r.Duration.Seconds(), 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "report.WriteCSV")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "report.WriteCSV")
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "report.WriteJSON")
}

// WriteText prints the table for a terminal.
func WriteText(w io.Writer, t *lofo.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "base CAPE\t%.4f\n\n", t.BaseScore)
	fmt.Fprintln(tw, "FEATURE\tSCORE\tEXCLUDED\t")
	for _, r := range t.Records {
		fmt.Fprintf(tw, "%s\t%+.4f\t%.4f\t\n", r.Feature, r.Score, r.ExcludedScore)
	}
	return errors.Wrap(tw.Flush(), "report.WriteText")
}

// SaveFile creates path and writes to it with write.
func SaveFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return write(f)
}
