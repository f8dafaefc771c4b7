// Command timetable-convert expands a timetable document offline and writes the
// occurrences as JSON, CSV, PDF or iCalendar.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-ingest/internal/models"
	"github.com/noah-isme/timetable-ingest/internal/service"
	"github.com/noah-isme/timetable-ingest/internal/timetable"
	"github.com/noah-isme/timetable-ingest/pkg/logger"
)

type options struct {
	in          string
	out         string
	format      string
	marker      string
	institution string
	termStart   string
	timezone    string
	logLevel    string
}

type jsonOutput struct {
	Code        string                `json:"code"`
	Message     string                `json:"message"`
	Stats       models.ExpansionStats `json:"stats"`
	Occurrences []models.Occurrence   `json:"occurrences"`
}

func main() {
	opts := options{}
	fs := flag.NewFlagSet("timetable-convert", flag.ContinueOnError)
	fs.StringVarP(&opts.in, "in", "i", "-", "input document, - for stdin")
	fs.StringVarP(&opts.out, "out", "o", "-", "output file, - for stdout")
	fs.StringVarP(&opts.format, "format", "f", "json", "output format: json, csv, pdf, ics or periods")
	fs.StringVar(&opts.marker, "marker", timetable.DefaultMarker, "title detail marker preceding the teacher annotation")
	fs.StringVar(&opts.institution, "institution", "default", "institution whose period table is used")
	fs.StringVar(&opts.termStart, "term-start", "", "first day of week 1 (YYYY-MM-DD), required for ics")
	fs.StringVar(&opts.timezone, "timezone", "Asia/Shanghai", "timezone of the term calendar")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logr := logger.NewCLI(opts.logLevel)
	defer logr.Sync() //nolint:errcheck

	if err := run(opts, logr); err != nil {
		logr.Error("conversion failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(opts options, logr *zap.Logger) error {
	output, closeOut, err := openOutput(opts.out)
	if err != nil {
		return err
	}
	defer closeOut()

	format := strings.ToLower(opts.format)
	if format == "periods" {
		return writeJSON(output, timetable.PeriodsFor(opts.institution))
	}

	raw, err := readInput(opts.in)
	if err != nil {
		return err
	}
	resp, err := timetable.Decode(raw)
	if err != nil {
		return err
	}
	expander := timetable.NewExpander(timetable.NewTitleDetailLocator(opts.marker), logr)
	occurrences, stats := expander.ExpandResponse(resp)
	logr.Info("document expanded",
		zap.Int("items", stats.Items),
		zap.Int("occurrences", stats.Occurrences),
		zap.Int("dropped_patterns", stats.DroppedPatterns),
	)

	if format == "json" {
		if occurrences == nil {
			occurrences = []models.Occurrence{}
		}
		return writeJSON(output, jsonOutput{Code: resp.Code.String(), Message: resp.Msg, Stats: stats, Occurrences: occurrences})
	}

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	var termStart time.Time
	if opts.termStart != "" {
		if termStart, err = time.ParseInLocation(time.DateOnly, opts.termStart, loc); err != nil {
			return fmt.Errorf("term start: %w", err)
		}
	}

	renderer := service.NewExportService(nil, nil, nil, service.ExportConfig{
		Institution: opts.institution,
		Location:    loc,
	}, logr, nil, nil, nil)
	payload, err := renderer.Render(format, occurrences, termStart)
	if err != nil {
		return err
	}
	_, err = output.Write(payload)
	return err
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
