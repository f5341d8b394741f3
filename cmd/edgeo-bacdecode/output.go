package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edgeo-scada/bacdecode/internal/monitor"
)

// OutputFormat represents output format types
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatRaw   OutputFormat = "raw"
)

// Formatter handles output formatting
type Formatter struct {
	format OutputFormat
	writer io.Writer

	csv           *csv.Writer
	headerWritten bool
}

// NewFormatter creates a new formatter
func NewFormatter(format string) *Formatter {
	return &Formatter{
		format: OutputFormat(format),
		writer: os.Stdout,
	}
}

// SetWriter sets the output writer
func (f *Formatter) SetWriter(w io.Writer) {
	f.writer = w
	f.csv = nil
	f.headerWritten = false
}

// Printf formats and prints output
func (f *Formatter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(f.writer, format, args...)
}

// Println prints a line
func (f *Formatter) Println(args ...interface{}) {
	fmt.Fprintln(f.writer, args...)
}

// PrintTable prints data in table format
func (f *Formatter) PrintTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Fprintf(f.writer, "%-*s ", widths[i], h)
	}
	fmt.Fprintln(f.writer)

	for i := range headers {
		fmt.Fprint(f.writer, strings.Repeat("-", widths[i]), " ")
	}
	fmt.Fprintln(f.writer)

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(f.writer, "%-*s ", widths[i], cell)
			}
		}
		fmt.Fprintln(f.writer)
	}
}

// PrintKeyValue prints key-value pairs
func (f *Formatter) PrintKeyValue(pairs map[string]interface{}, order []string) {
	maxKeyLen := 0
	for _, key := range order {
		if len(key) > maxKeyLen {
			maxKeyLen = len(key)
		}
	}

	for _, key := range order {
		if val, ok := pairs[key]; ok {
			fmt.Fprintf(f.writer, "%-*s: %v\n", maxKeyLen, key, val)
		}
	}
}

// PrintReports prints a batch of decoded frames
func (f *Formatter) PrintReports(reports []*monitor.Report) error {
	switch f.format {
	case FormatJSON:
		encoder := json.NewEncoder(f.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	case FormatTable:
		rows := make([][]string, len(reports))
		for i, r := range reports {
			rows[i] = r.Row()
		}
		f.PrintTable(monitor.ReportHeaders, rows)
		return nil
	default:
		for _, r := range reports {
			if err := f.StreamReport(r); err != nil {
				return err
			}
		}
		return nil
	}
}

// StreamReport prints one decoded frame as it arrives
func (f *Formatter) StreamReport(r *monitor.Report) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.writer).Encode(r)
	case FormatCSV:
		if f.csv == nil {
			f.csv = csv.NewWriter(f.writer)
		}
		if !f.headerWritten {
			if err := f.csv.Write(monitor.ReportHeaders); err != nil {
				return err
			}
			f.headerWritten = true
		}
		if err := f.csv.Write(r.Row()); err != nil {
			return err
		}
		f.csv.Flush()
		return f.csv.Error()
	case FormatRaw:
		line := r.Summary()
		if r.Error != "" {
			line += " error=" + r.Error
		}
		fmt.Fprintln(f.writer, line)
		return nil
	default:
		cells := make([]string, 0, len(monitor.ReportHeaders))
		for _, c := range r.Row() {
			if c != "" {
				cells = append(cells, c)
			}
		}
		fmt.Fprintln(f.writer, strings.Join(cells, "  "))
		return nil
	}
}

var statsOrder = []string{
	"Frames",
	"BVLC",
	"MS/TP",
	"Decode failures",
	"Without NPDU",
	"APDUs",
	"Network messages",
	"Empty NSDUs",
	"NSDU failures",
	"Who-Is",
	"I-Am",
	"Header CRC errors",
	"Data CRC errors",
	"Bytes",
	"Avg decode time",
}

// PrintStats prints the counters collected while decoding
func (f *Formatter) PrintStats(s monitor.MetricsSnapshot) error {
	pairs := map[string]interface{}{
		"Frames":            s.Frames(),
		"BVLC":              s.FramesBVLC,
		"MS/TP":             s.FramesMSTP,
		"Decode failures":   s.DecodeFailures,
		"Without NPDU":      s.FramesWithoutNPDU,
		"APDUs":             s.APDUs,
		"Network messages":  s.NLMs,
		"Empty NSDUs":       s.EmptyNSDUs,
		"NSDU failures":     s.NSDUFailures,
		"Who-Is":            s.WhoIs,
		"I-Am":              s.IAm,
		"Header CRC errors": s.HeaderCRCErrors,
		"Data CRC errors":   s.DataCRCErrors,
		"Bytes":             s.BytesDecoded,
		"Avg decode time":   s.LatencyStats.Avg,
	}

	switch f.format {
	case FormatJSON, FormatCSV:
		// Machine readable formats carry the reports only.
		return nil
	default:
		fmt.Fprintln(f.writer)
		f.PrintKeyValue(pairs, statsOrder)
		return nil
	}
}
