package dly

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"ghcn-daily/internal/models"
)

// BuildOption configures Build
type BuildOption func(*buildOptions)

type buildOptions struct {
	startYear   *int
	endYear     *int
	onMalformed func(*models.MalformedRecordError)
	calendar    bool
}

// WithStartYear drops rows before year (inclusive bound)
func WithStartYear(year int) BuildOption {
	return func(o *buildOptions) { o.startYear = &year }
}

// WithEndYear drops rows after year (inclusive bound)
func WithEndYear(year int) BuildOption {
	return func(o *buildOptions) { o.endYear = &year }
}

// WithYearRange sets both bounds; a nil bound is open
func WithYearRange(start, end *int) BuildOption {
	return func(o *buildOptions) {
		o.startYear = start
		o.endYear = end
	}
}

// WithMalformedHandler makes Build skip lines that fail to decode, passing
// each error to fn. Without a handler the first malformed line aborts the build.
func WithMalformedHandler(fn func(*models.MalformedRecordError)) BuildOption {
	return func(o *buildOptions) { o.onMalformed = fn }
}

// WithCalendarPruning drops day slots that do not exist in the record's
// month, e.g. February 30.
func WithCalendarPruning() BuildOption {
	return func(o *buildOptions) { o.calendar = true }
}

func (o *buildOptions) validate() error {
	if o.startYear != nil && o.endYear != nil && *o.endYear < *o.startYear {
		return &models.ValidationError{
			Field:   "end_year",
			Value:   strconv.Itoa(*o.endYear),
			Message: fmt.Sprintf("end_year %d cannot be less than start_year %d", *o.endYear, *o.startYear),
		}
	}
	return nil
}

func (o *buildOptions) inRange(year int) bool {
	if o.startYear != nil && year < *o.startYear {
		return false
	}
	if o.endYear != nil && year > *o.endYear {
		return false
	}
	return true
}

// Build decodes every line of r into a table of raw values, in input order.
func Build(r io.Reader, opts ...BuildOption) (*Table, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	var rows []models.Row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, LineWidth+2), 64*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		// lines outside the year range are dropped before their values
		// are decoded, so they cannot fail the build
		if year, ok := RecordYear(line); ok && !o.inRange(year) {
			continue
		}

		rec, err := DecodeLine(line)
		if err != nil {
			var malformed *models.MalformedRecordError
			if !errors.As(err, &malformed) {
				return nil, err
			}
			malformed.Line = lineNo
			if o.onMalformed == nil {
				return nil, malformed
			}
			o.onMalformed(malformed)
			continue
		}

		rows = appendRecord(rows, rec, o.calendar)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dly input: %w", err)
	}

	return newOwnedTable(rows, UnitsRaw), nil
}

// BuildLines is Build over an in-memory slice of lines
func BuildLines(lines []string, opts ...BuildOption) (*Table, error) {
	return Build(strings.NewReader(strings.Join(lines, "\n")), opts...)
}

// ParseFile opens path and builds a table from it
func ParseFile(path string, opts ...BuildOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dly file: %w", err)
	}
	defer f.Close()

	return Build(f, opts...)
}

func appendRecord(rows []models.Row, rec *models.Record, calendar bool) []models.Row {
	expanded := rec.Rows()
	if calendar {
		expanded = expanded[:DaysIn(rec.Year, rec.Month)]
	}
	return append(rows, expanded...)
}

// DaysIn returns the number of days in the given month
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
