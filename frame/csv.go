package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// CNRTimeLayout is the timestamp layout of the CNR wind-farm files.
const CNRTimeLayout = "02/01/2006 15:04"

// CSVOptions describes the index columns of a feature file.
type CSVOptions struct {
	IDColumn    string
	TimeColumn  string // optional
	GroupColumn string // optional
	TimeLayout  string
	// Partition tags every row; PartitionColumn, when present in the file, wins.
	Partition       Partition
	PartitionColumn string
}

// DefaultCSVOptions matches the CNR X_train/X_test layout.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		IDColumn:        "ID",
		TimeColumn:      "Time",
		GroupColumn:     "WF",
		TimeLayout:      CNRTimeLayout,
		Partition:       PartitionTrain,
		PartitionColumn: "Set",
	}
}

// ReadCSV parses a header-first CSV into a Table. Every column other than the index
// columns must be numeric; empty cells and "NaN" become NaN.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "frame.ReadCSV: header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	idCol, timeCol, groupCol, partCol := -1, -1, -1, -1
	var valueCols []int
	for i, name := range header {
		switch {
		case name == opts.IDColumn:
			idCol = i
		case opts.TimeColumn != "" && name == opts.TimeColumn:
			timeCol = i
		case opts.GroupColumn != "" && name == opts.GroupColumn:
			groupCol = i
		case opts.PartitionColumn != "" && name == opts.PartitionColumn:
			partCol = i
		default:
			valueCols = append(valueCols, i)
		}
	}
	if idCol < 0 {
		return nil, errors.NewSchemaError("frame.ReadCSV", opts.IDColumn, "id column not found")
	}
	if opts.TimeColumn != "" && timeCol < 0 {
		return nil, errors.NewSchemaError("frame.ReadCSV", opts.TimeColumn, "time column not found")
	}
	layout := opts.TimeLayout
	if layout == "" {
		layout = CNRTimeLayout
	}

	var ix Index
	if timeCol >= 0 {
		ix.Times = []time.Time{}
	}
	if groupCol >= 0 {
		ix.Groups = []string{}
	}
	ix.Partitions = []Partition{}
	values := make([][]float64, len(valueCols))

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "frame.ReadCSV: line %d", line)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(record[idCol]), 10, 64)
		if err != nil {
			return nil, errors.NewSchemaError("frame.ReadCSV", header[idCol], fmt.Sprintf("line %d: invalid id %q", line, record[idCol]))
		}
		ix.IDs = append(ix.IDs, id)
		if timeCol >= 0 {
			ts, err := time.Parse(layout, strings.TrimSpace(record[timeCol]))
			if err != nil {
				return nil, errors.NewSchemaError("frame.ReadCSV", header[timeCol], fmt.Sprintf("line %d: invalid time %q", line, record[timeCol]))
			}
			ix.Times = append(ix.Times, ts)
		}
		if groupCol >= 0 {
			ix.Groups = append(ix.Groups, strings.TrimSpace(record[groupCol]))
		}
		part := opts.Partition
		if partCol >= 0 {
			part = Partition(strings.TrimSpace(record[partCol]))
		}
		if part == "" {
			part = PartitionTrain
		}
		ix.Partitions = append(ix.Partitions, part)

		for k, c := range valueCols {
			v, err := parseFloat(record[c])
			if err != nil {
				return nil, errors.NewSchemaError("frame.ReadCSV", header[c], fmt.Sprintf("line %d: invalid number %q", line, record[c]))
			}
			values[k] = append(values[k], v)
		}
	}

	cols := make([]Column, len(valueCols))
	for k, c := range valueCols {
		cols[k] = Column{Name: header[c], Values: values[k]}
		if cols[k].Values == nil {
			cols[k].Values = []float64{}
		}
	}
	return New(ix, cols...)
}

// ReadCSVFile opens path and calls ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ReadSeriesCSV reads an (id, value) pair of columns, such as the CNR Y_train file.
func ReadSeriesCSV(r io.Reader, idColumn, valueColumn string) (Series, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return Series{}, errors.Wrap(err, "frame.ReadSeriesCSV: header")
	}
	idCol, valCol := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case idColumn:
			idCol = i
		case valueColumn:
			valCol = i
		}
	}
	if idCol < 0 {
		return Series{}, errors.NewSchemaError("frame.ReadSeriesCSV", idColumn, "id column not found")
	}
	if valCol < 0 {
		return Series{}, errors.NewSchemaError("frame.ReadSeriesCSV", valueColumn, "value column not found")
	}

	var ids []int64
	var vals []float64
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return Series{}, errors.Wrapf(err, "frame.ReadSeriesCSV: line %d", line)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(record[idCol]), 10, 64)
		if err != nil {
			return Series{}, errors.NewSchemaError("frame.ReadSeriesCSV", idColumn, fmt.Sprintf("line %d: invalid id %q", line, record[idCol]))
		}
		v, err := parseFloat(record[valCol])
		if err != nil {
			return Series{}, errors.NewSchemaError("frame.ReadSeriesCSV", valueColumn, fmt.Sprintf("line %d: invalid number %q", line, record[valCol]))
		}
		ids = append(ids, id)
		vals = append(vals, v)
	}
	return NewSeries(valueColumn, ids, vals)
}

// ReadSeriesCSVFile opens path and calls ReadSeriesCSV.
func ReadSeriesCSVFile(path, idColumn, valueColumn string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadSeriesCSV(f, idColumn, valueColumn)
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes t with index columns first, using the CNR column names.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := []string{"ID"}
	if t.index.Times != nil {
		header = append(header, "Time")
	}
	if t.index.Groups != nil {
		header = append(header, "WF")
	}
	if t.index.Partitions != nil {
		header = append(header, "Set")
	}
	header = append(header, t.names...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "frame.WriteCSV")
	}

	record := make([]string, len(header))
	for i := 0; i < t.Len(); i++ {
		record = record[:0]
		record = append(record, strconv.FormatInt(t.index.IDs[i], 10))
		if t.index.Times != nil {
			record = append(record, t.index.Times[i].Format(CNRTimeLayout))
		}
		if t.index.Groups != nil {
			record = append(record, t.index.Groups[i])
		}
		if t.index.Partitions != nil {
			record = append(record, string(t.index.Partitions[i]))
		}
		for _, name := range t.names {
			v := t.cols[name][i]
			if math.IsNaN(v) {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "frame.WriteCSV")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "frame.WriteCSV")
}

// WriteSeriesCSV writes s as an (idColumn, s.Name) CSV, the layout ReadSeriesCSV reads.
func WriteSeriesCSV(w io.Writer, s Series, idColumn string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{idColumn, s.Name}); err != nil {
		return errors.Wrap(err, "frame.WriteSeriesCSV")
	}
	for i, id := range s.IDs {
		v := ""
		if !math.IsNaN(s.Values[i]) {
			v = strconv.FormatFloat(s.Values[i], 'g', -1, 64)
		}
		if err := cw.Write([]string{strconv.FormatInt(id, 10), v}); err != nil {
			return errors.Wrap(err, "frame.WriteSeriesCSV")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "frame.WriteSeriesCSV")
}
