package models

import (
	"fmt"
	"strings"
)

// Sentinel marks a day slot with no measurement. GHCN stores it in the
// value field in place of a reading.
const Sentinel = -9999

// ScaleFactor converts raw tenths (of a degree C or of a mm) to physical units.
const ScaleFactor = 10.0

// DaysPerRecord is the fixed number of day slots on every .dly line.
const DaysPerRecord = 31

// Station represents a GHCN station identified by its 11 character id
type Station struct {
	StationID string `json:"station_id" db:"station_id"`
	Country   string `json:"country" db:"country"`
}

// NewStation builds a Station, deriving the FIPS country code from the id prefix
func NewStation(stationID string) *Station {
	country := "XX"
	if len(stationID) >= 2 {
		country = stationID[:2]
	}
	return &Station{StationID: stationID, Country: country}
}

// StationSummary describes what the store holds for one station
type StationSummary struct {
	Station
	FirstYear int      `json:"first_year" db:"first_year"`
	LastYear  int      `json:"last_year" db:"last_year"`
	Rows      int      `json:"rows" db:"row_count"`
	Elements  []string `json:"elements" db:"-"`
}

// DailyValue is one day slot of a record: the raw value plus its
// measurement, quality and source flags.
type DailyValue struct {
	Value int  `json:"value"`
	MFlag byte `json:"mflag"`
	QFlag byte `json:"qflag"`
	SFlag byte `json:"sflag"`
}

// Missing reports whether the slot holds the sentinel
func (d DailyValue) Missing() bool {
	return d.Value == Sentinel
}

// Record represents a single decoded line of a .dly file: one station,
// month and element with its 31 day slots
type Record struct {
	StationID string
	Year      int
	Month     int
	Element   string
	Values    [DaysPerRecord]DailyValue
}

// Rows expands the record into one Row per day slot, day 1 through 31.
// No calendar validation is applied.
func (r *Record) Rows() []Row {
	rows := make([]Row, DaysPerRecord)
	for i, v := range r.Values {
		rows[i] = Row{
			Station: r.StationID,
			Year:    r.Year,
			Month:   r.Month,
			Day:     i + 1,
			Obs:     r.Element,
			Value:   float64(v.Value),
		}
	}
	return rows
}

// Row is a single per-day observation in a table
type Row struct {
	Station string  `json:"station_id"`
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Day     int     `json:"day"`
	Obs     string  `json:"obs"`
	Value   float64 `json:"value"`
}

// Missing reports whether the row still holds the sentinel
func (r Row) Missing() bool {
	return r.Value == Sentinel
}

// Get returns the value of the named column
func (r Row) Get(c Column) any {
	switch c {
	case ColumnYear:
		return r.Year
	case ColumnMonth:
		return r.Month
	case ColumnDay:
		return r.Day
	case ColumnObs:
		return r.Obs
	case ColumnValue:
		return r.Value
	default:
		return nil
	}
}

// Column names a table column
type Column string

const (
	ColumnYear  Column = "year"
	ColumnMonth Column = "month"
	ColumnDay   Column = "day"
	ColumnObs   Column = "obs"
	ColumnValue Column = "value"
)

// Columns lists the table columns in output order
var Columns = []Column{ColumnYear, ColumnMonth, ColumnDay, ColumnObs, ColumnValue}

// ParseColumn resolves a column name, case-insensitively
func ParseColumn(name string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(name)))
	switch c {
	case ColumnYear, ColumnMonth, ColumnDay, ColumnObs, ColumnValue:
		return c, nil
	}
	return "", &InvalidFilterError{
		Column:  name,
		Message: fmt.Sprintf("column must be one of %v", Columns),
	}
}

// Numeric reports whether the column holds numbers rather than text
func (c Column) Numeric() bool {
	return c != ColumnObs
}
