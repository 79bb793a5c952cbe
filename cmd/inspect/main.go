// Command inspect parses a local .dly file, applies filters and optional
// interpolation, and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"ghcn-daily/internal/dly"
	"ghcn-daily/internal/models"
	"ghcn-daily/pkg/logging"
)

type filterFlags []string

func (f *filterFlags) String() string { return strings.Join(*f, ",") }

func (f *filterFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

type options struct {
	file          string
	startYear     int
	endYear       int
	filters       filterFlags
	interpolate   string
	edge          string
	skipEmpty     bool
	calendar      bool
	skipMalformed bool
	summary       bool
}

// output is what inspect prints
type output struct {
	File          string                   `json:"file"`
	Units         dly.Units                `json:"units"`
	Count         int                      `json:"count"`
	Missing       int                      `json:"missing"`
	Malformed     int                      `json:"malformed"`
	Interpolation *dly.InterpolationReport `json:"interpolation,omitempty"`
	Records       map[string][]any         `json:"records,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Path of the .dly file to inspect")
	flag.IntVar(&opts.startYear, "start-year", 0, "First year to keep, 0 for open")
	flag.IntVar(&opts.endYear, "end-year", 0, "Last year to keep, 0 for open")
	flag.Var(&opts.filters, "filter", "Filter as column:op:value, repeatable")
	flag.StringVar(&opts.interpolate, "interpolate", "", "Interpolation axis: year, month or day")
	flag.StringVar(&opts.edge, "edge", string(dly.EdgeLeave), "Edge policy: leave, nearest or drop")
	flag.BoolVar(&opts.skipEmpty, "skip-empty", false, "Leave groups without valid values untouched")
	flag.BoolVar(&opts.calendar, "calendar", false, "Drop day slots past the end of the month")
	flag.BoolVar(&opts.skipMalformed, "skip-malformed", false, "Skip malformed lines instead of failing")
	flag.BoolVar(&opts.summary, "summary", false, "Print counts only")
	level := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if opts.file == "" && flag.NArg() > 0 {
		opts.file = flag.Arg(0)
	}
	if opts.file == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect -file station.dly [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logLevel, err := logging.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	logger := logging.NewStructuredLogger("ghcn-inspect", "1.0.0", logLevel)
	logger.SetOutput(os.Stderr)

	if err := run(context.Background(), opts, logger, os.Stdout); err != nil {
		logger.Error(context.Background(), "[INSPECT_ERROR] Inspection failed", logging.Fields{"file": opts.file}, err)
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *logging.StructuredLogger, w io.Writer) error {
	out := output{File: opts.file}

	buildOpts := []dly.BuildOption{}
	if opts.startYear > 0 {
		buildOpts = append(buildOpts, dly.WithStartYear(opts.startYear))
	}
	if opts.endYear > 0 {
		buildOpts = append(buildOpts, dly.WithEndYear(opts.endYear))
	}
	if opts.calendar {
		buildOpts = append(buildOpts, dly.WithCalendarPruning())
	}
	if opts.skipMalformed {
		buildOpts = append(buildOpts, dly.WithMalformedHandler(func(e *models.MalformedRecordError) {
			out.Malformed++
			logger.Warn(ctx, "[INSPECT_MALFORMED] Skipping malformed line", logging.Fields{
				"line":   e.Line,
				"field":  e.Field,
				"reason": e.Reason,
			})
		}))
	}

	table, err := dly.ParseFile(opts.file, buildOpts...)
	if err != nil {
		return err
	}

	filters, err := dly.ParseFilters(opts.filters)
	if err != nil {
		return err
	}
	if table, err = dly.Apply(table, filters); err != nil {
		return err
	}

	if opts.interpolate != "" {
		axis, err := models.ParseColumn(opts.interpolate)
		if err != nil {
			return err
		}
		edge, err := dly.ParseEdgePolicy(opts.edge)
		if err != nil {
			return err
		}
		interpOpts := []dly.InterpolateOption{dly.WithEdgePolicy(edge)}
		if opts.skipEmpty {
			interpOpts = append(interpOpts, dly.WithSkipEmptyGroups())
		}
		if table, out.Interpolation, err = dly.Interpolate(table, axis, interpOpts...); err != nil {
			return err
		}
		logger.Info(ctx, "[INSPECT_RESCALE] Values rescaled to physical units", logging.Fields{
			"rescaled": out.Interpolation.Rescaled,
			"filled":   out.Interpolation.Filled,
		})
	}

	out.Units = table.Units()
	out.Count = table.Len()
	out.Missing = table.Missing()
	if !opts.summary {
		out.Records = dly.ToRecords(table)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
