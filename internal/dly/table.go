package dly

import "ghcn-daily/internal/models"

// Units tells whether table values are raw tenths or physical units
type Units string

const (
	UnitsRaw      Units = "tenths"
	UnitsPhysical Units = "physical"
)

// Table is an ordered, immutable sequence of rows. Filtering and
// interpolation return new tables and leave the receiver untouched.
type Table struct {
	rows  []models.Row
	units Units
}

// NewTable copies rows into a new table
func NewTable(rows []models.Row, units Units) *Table {
	if units == "" {
		units = UnitsRaw
	}
	cp := make([]models.Row, len(rows))
	copy(cp, rows)
	return &Table{rows: cp, units: units}
}

// newOwnedTable wraps rows the caller will not touch again
func newOwnedTable(rows []models.Row, units Units) *Table {
	if rows == nil {
		rows = []models.Row{}
	}
	return &Table{rows: rows, units: units}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// At returns the i-th row
func (t *Table) At(i int) models.Row {
	return t.rows[i]
}

// Rows returns a copy of all rows in table order
func (t *Table) Rows() []models.Row {
	cp := make([]models.Row, len(t.rows))
	copy(cp, t.rows)
	return cp
}

// Units returns the unit state of the values
func (t *Table) Units() Units {
	return t.units
}

// Each calls fn for every row in order until fn returns false
func (t *Table) Each(fn func(int, models.Row) bool) {
	for i, r := range t.rows {
		if !fn(i, r) {
			return
		}
	}
}

// Missing counts rows still holding the sentinel
func (t *Table) Missing() int {
	n := 0
	for _, r := range t.rows {
		if r.Missing() {
			n++
		}
	}
	return n
}
