package models

import (
	"errors"
	"testing"
)

func TestRecord_Rows(t *testing.T) {
	rec := &Record{StationID: "USC00000001", Year: 1882, Month: 2, Element: "TMAX"}
	for i := range rec.Values {
		rec.Values[i] = DailyValue{Value: i * 10}
	}
	rec.Values[30] = DailyValue{Value: Sentinel}

	rows := rec.Rows()
	if len(rows) != DaysPerRecord {
		t.Fatalf("len(rows) = %d, want %d", len(rows), DaysPerRecord)
	}

	first := rows[0]
	if first.Year != 1882 || first.Month != 2 || first.Day != 1 || first.Obs != "TMAX" || first.Value != 0 {
		t.Errorf("rows[0] = %+v", first)
	}
	if first.Station != "USC00000001" {
		t.Errorf("Station = %q", first.Station)
	}

	// February still yields day 30 and 31 slots
	if rows[29].Day != 30 || rows[29].Value != 290 {
		t.Errorf("rows[29] = %+v", rows[29])
	}
	if !rows[30].Missing() {
		t.Error("rows[30] should be missing")
	}
}

func TestRow_Get(t *testing.T) {
	row := Row{Year: 1950, Month: 4, Day: 3, Obs: "TMIN", Value: -12}

	tests := []struct {
		column Column
		want   any
	}{
		{ColumnYear, 1950},
		{ColumnMonth, 4},
		{ColumnDay, 3},
		{ColumnObs, "TMIN"},
		{ColumnValue, -12.0},
		{Column("station"), nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.column), func(t *testing.T) {
			if got := row.Get(tt.column); got != tt.want {
				t.Errorf("Get(%s) = %v, want %v", tt.column, got, tt.want)
			}
		})
	}
}

func TestParseColumn(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Column
		wantErr bool
	}{
		{"year", "year", ColumnYear, false},
		{"upper case", "OBS", ColumnObs, false},
		{"padded", " value ", ColumnValue, false},
		{"unknown", "station", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColumn(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColumn(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				var filterErr *InvalidFilterError
				if !errors.As(err, &filterErr) {
					t.Errorf("error type = %T, want *InvalidFilterError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseColumn(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewStation(t *testing.T) {
	if s := NewStation("USC00011084"); s.Country != "US" {
		t.Errorf("Country = %q, want US", s.Country)
	}
	if s := NewStation("X"); s.Country != "XX" {
		t.Errorf("Country = %q, want XX", s.Country)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  interface {
			error
			IsTransient() bool
		}
		want string
	}{
		{
			name: "malformed with line",
			err:  &MalformedRecordError{Line: 3, Field: "year", Value: "18x2", Reason: "not an integer"},
			want: "line 3: malformed record: field year: not an integer",
		},
		{
			name: "malformed without field",
			err:  &MalformedRecordError{Reason: "line too short"},
			want: "malformed record: line too short",
		},
		{
			name: "invalid filter operator",
			err:  &InvalidFilterError{Column: "year", Operator: "like", Message: "unknown operator"},
			want: "invalid filter year/like: unknown operator",
		},
		{
			name: "interpolation",
			err:  &InterpolationError{Group: "1950-04 TMAX", Message: "no valid values"},
			want: "interpolation failed for group 1950-04 TMAX: no valid values",
		},
		{
			name: "validation",
			err:  &ValidationError{Field: "end_year", Message: "end_year cannot be less than start_year"},
			want: "end_year cannot be less than start_year",
		},
		{
			name: "not found",
			err:  &NotFoundError{Resource: "station", ID: "USC0"},
			want: "station not found: USC0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.want)
			}
			if tt.err.IsTransient() {
				t.Error("error should not be transient")
			}
		})
	}
}
