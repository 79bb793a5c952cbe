package dly

import (
	"fmt"
	"sort"
	"strings"

	"ghcn-daily/internal/models"
)

// EdgePolicy decides what happens to a missing row that has a valid
// neighbour on one side only
type EdgePolicy string

const (
	// EdgeLeave keeps the row with the sentinel value
	EdgeLeave EdgePolicy = "leave"
	// EdgeNearest copies the nearest valid value
	EdgeNearest EdgePolicy = "nearest"
	// EdgeDrop removes the row from the result
	EdgeDrop EdgePolicy = "drop"
)

// ParseEdgePolicy resolves a policy name. Empty means EdgeLeave.
func ParseEdgePolicy(name string) (EdgePolicy, error) {
	switch p := EdgePolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return EdgeLeave, nil
	case EdgeLeave, EdgeNearest, EdgeDrop:
		return p, nil
	}
	return "", &models.ValidationError{
		Field:   "edge",
		Value:   name,
		Message: "edge policy must be one of leave, nearest, drop",
	}
}

// InterpolateOption configures Interpolate
type InterpolateOption func(*interpolateOptions)

type interpolateOptions struct {
	edge      EdgePolicy
	skipEmpty bool
}

// WithEdgePolicy sets the handling of leading and trailing gaps
func WithEdgePolicy(p EdgePolicy) InterpolateOption {
	return func(o *interpolateOptions) { o.edge = p }
}

// WithSkipEmptyGroups leaves groups without any valid value untouched
// instead of failing the whole call
func WithSkipEmptyGroups() InterpolateOption {
	return func(o *interpolateOptions) { o.skipEmpty = true }
}

// InterpolationReport summarizes one Interpolate call
type InterpolationReport struct {
	Axis          models.Column `json:"axis"`
	Groups        int           `json:"groups"`
	Filled        int           `json:"filled"`
	Unfilled      int           `json:"unfilled"`
	Dropped       int           `json:"dropped"`
	Rescaled      int           `json:"rescaled"`
	AlreadyScaled bool          `json:"already_scaled"`
	SkippedGroups []string      `json:"skipped_groups,omitempty"`
}

// groupKey identifies one interpolation series. Rows of different
// stations never share a series.
type groupKey struct {
	station          string
	year, month, day int
	obs              string
}

func (k groupKey) String(axis models.Column) string {
	parts := make([]string, 0, 5)
	if k.station != "" {
		parts = append(parts, "station="+k.station)
	}
	if axis != models.ColumnYear {
		parts = append(parts, fmt.Sprintf("year=%d", k.year))
	}
	if axis != models.ColumnMonth {
		parts = append(parts, fmt.Sprintf("month=%d", k.month))
	}
	if axis != models.ColumnDay {
		parts = append(parts, fmt.Sprintf("day=%d", k.day))
	}
	parts = append(parts, "obs="+k.obs)
	return strings.Join(parts, " ")
}

// Interpolate fills missing rows by linear interpolation along axis and
// converts raw tenths to physical units. Rows are grouped by station and
// every key column except axis, so axis=day interpolates within a station
// month.
// Row order is preserved. A table already in physical units is gap
// filled but not rescaled again.
func Interpolate(t *Table, axis models.Column, opts ...InterpolateOption) (*Table, *InterpolationReport, error) {
	o := &interpolateOptions{edge: EdgeLeave}
	for _, opt := range opts {
		opt(o)
	}

	if err := validateAxis(axis); err != nil {
		return nil, nil, err
	}
	if _, err := ParseEdgePolicy(string(o.edge)); err != nil {
		return nil, nil, err
	}

	report := &InterpolationReport{Axis: axis}
	out := t.Rows()
	keys, groups := groupRows(out, axis)
	report.Groups = len(keys)
	dropped := make(map[int]bool)

	for _, key := range keys {
		idx := groups[key]
		sort.SliceStable(idx, func(a, b int) bool {
			return axisPosition(out[idx[a]], axis) < axisPosition(out[idx[b]], axis)
		})

		if !hasValid(out, idx) {
			err := &models.InterpolationError{
				Group:   key.String(axis),
				Message: "no valid values to interpolate from",
			}
			if !o.skipEmpty {
				return nil, nil, err
			}
			report.SkippedGroups = append(report.SkippedGroups, err.Group)
			report.Unfilled += len(idx)
			continue
		}

		fillGroup(out, idx, axis, o.edge, report, dropped)
	}

	units := t.units
	if units == UnitsPhysical {
		report.AlreadyScaled = true
	} else {
		for i := range out {
			if dropped[i] || out[i].Missing() {
				continue
			}
			out[i].Value /= models.ScaleFactor
			report.Rescaled++
		}
		units = UnitsPhysical
	}

	if len(dropped) > 0 {
		kept := make([]models.Row, 0, len(out)-len(dropped))
		for i, r := range out {
			if !dropped[i] {
				kept = append(kept, r)
			}
		}
		out = kept
	}

	return newOwnedTable(out, units), report, nil
}

func validateAxis(axis models.Column) error {
	switch axis {
	case models.ColumnYear, models.ColumnMonth, models.ColumnDay:
		return nil
	}
	return &models.ValidationError{
		Field:   "axis",
		Value:   string(axis),
		Message: "interpolation axis must be one of year, month, day",
	}
}

// groupRows returns group keys in first-seen order and the row indexes of each group
func groupRows(rows []models.Row, axis models.Column) ([]groupKey, map[groupKey][]int) {
	var keys []groupKey
	groups := make(map[groupKey][]int)
	for i, r := range rows {
		k := groupKey{station: r.Station, year: r.Year, month: r.Month, day: r.Day, obs: r.Obs}
		switch axis {
		case models.ColumnYear:
			k.year = 0
		case models.ColumnMonth:
			k.month = 0
		case models.ColumnDay:
			k.day = 0
		}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	return keys, groups
}

func axisPosition(r models.Row, axis models.Column) float64 {
	switch axis {
	case models.ColumnYear:
		return float64(r.Year)
	case models.ColumnMonth:
		return float64(r.Month)
	default:
		return float64(r.Day)
	}
}

func hasValid(rows []models.Row, idx []int) bool {
	for _, i := range idx {
		if !rows[i].Missing() {
			return true
		}
	}
	return false
}

// fillGroup interpolates the missing rows of one group; idx is sorted by axis
func fillGroup(rows []models.Row, idx []int, axis models.Column, edge EdgePolicy, report *InterpolationReport, dropped map[int]bool) {
	n := len(idx)

	// prev[k] / next[k] hold the position in idx of the nearest valid row
	// at or before / at or after k, or -1.
	prev := make([]int, n)
	next := make([]int, n)
	last := -1
	for k := 0; k < n; k++ {
		if !rows[idx[k]].Missing() {
			last = k
		}
		prev[k] = last
	}
	last = -1
	for k := n - 1; k >= 0; k-- {
		if !rows[idx[k]].Missing() {
			last = k
		}
		next[k] = last
	}

	// Anchors are valid rows only, so writing filled values in place is safe.
	for k := 0; k < n; k++ {
		i := idx[k]
		if !rows[i].Missing() {
			continue
		}

		p, q := prev[k], next[k]
		switch {
		case p >= 0 && q >= 0:
			rows[i].Value = lerp(rows[idx[p]], rows[idx[q]], rows[i], axis)
			report.Filled++
		case edge == EdgeNearest:
			if p >= 0 {
				rows[i].Value = rows[idx[p]].Value
			} else {
				rows[i].Value = rows[idx[q]].Value
			}
			report.Filled++
		case edge == EdgeDrop:
			dropped[i] = true
			report.Dropped++
		default:
			report.Unfilled++
		}
	}
}

// lerp computes v0 + (v1-v0)*(x-x0)/(x1-x0)
func lerp(left, right, at models.Row, axis models.Column) float64 {
	x0 := axisPosition(left, axis)
	x1 := axisPosition(right, axis)
	if x1 == x0 {
		return left.Value
	}
	x := axisPosition(at, axis)
	return left.Value + (right.Value-left.Value)*(x-x0)/(x1-x0)
}
