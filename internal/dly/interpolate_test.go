package dly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghcn-daily/internal/models"
)

const S = models.Sentinel

func build(t *testing.T, lines ...string) *Table {
	t.Helper()
	tbl, err := BuildLines(lines)
	require.NoError(t, err)
	return tbl
}

func TestInterpolate_MidGap(t *testing.T) {
	tbl := build(t, makeLine(1950, 4, "TMAX", 50, S, 70))

	out, report, err := Interpolate(tbl, models.ColumnDay)
	require.NoError(t, err)

	assert.Equal(t, UnitsPhysical, out.Units())
	assert.InDelta(t, 5.0, out.At(0).Value, 1e-9)
	assert.InDelta(t, 6.0, out.At(1).Value, 1e-9)
	assert.InDelta(t, 7.0, out.At(2).Value, 1e-9)
	assert.True(t, out.At(3).Missing())

	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 1, report.Filled)
	assert.Equal(t, 28, report.Unfilled)
	assert.Equal(t, 3, report.Rescaled)
}

func TestInterpolate_RescalesNegatives(t *testing.T) {
	tbl := build(t, makeLine(1882, 1, "TMIN", -500))

	out, _, err := Interpolate(tbl, models.ColumnDay)
	require.NoError(t, err)
	assert.InDelta(t, -50.0, out.At(0).Value, 1e-9)
}

func TestInterpolate_EdgePolicies(t *testing.T) {
	line := makeLine(1950, 4, "TMAX", S, 20, S, 40)

	tests := []struct {
		name     string
		policy   EdgePolicy
		wantLen  int
		first    float64
		last     float64
		filled   int
		unfilled int
		dropped  int
	}{
		{"leave", EdgeLeave, 31, S, S, 1, 28, 0},
		{"nearest", EdgeNearest, 31, 2.0, 4.0, 29, 0, 0},
		{"drop", EdgeDrop, 3, 2.0, 4.0, 1, 0, 28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report, err := Interpolate(build(t, line), models.ColumnDay, WithEdgePolicy(tt.policy))
			require.NoError(t, err)

			require.Equal(t, tt.wantLen, out.Len())
			assert.InDelta(t, tt.first, out.At(0).Value, 1e-9)
			assert.InDelta(t, tt.last, out.At(out.Len()-1).Value, 1e-9)
			assert.Equal(t, tt.filled, report.Filled)
			assert.Equal(t, tt.unfilled, report.Unfilled)
			assert.Equal(t, tt.dropped, report.Dropped)
		})
	}
}

func TestInterpolate_DropKeepsInteriorRows(t *testing.T) {
	out, _, err := Interpolate(build(t, makeLine(1950, 4, "TMAX", S, 20, S, 40)), models.ColumnDay, WithEdgePolicy(EdgeDrop))
	require.NoError(t, err)

	days := make([]int, 0, out.Len())
	out.Each(func(_ int, r models.Row) bool {
		days = append(days, r.Day)
		return true
	})
	assert.Equal(t, []int{2, 3, 4}, days)
	assert.InDelta(t, 3.0, out.At(1).Value, 1e-9)
}

func TestInterpolate_SampleStation(t *testing.T) {
	tbl := parseSample(t)
	year1950, err := Apply(tbl, []Filter{mustFilter(t, "year", 1950, "eq"), mustFilter(t, "obs", "PRCP", "ne")})
	require.NoError(t, err)

	out, report, err := Interpolate(year1950, models.ColumnDay)
	require.NoError(t, err)
	require.Equal(t, 62, out.Len())
	assert.Equal(t, 2, report.Groups)

	tmax := out.At(0)
	require.Equal(t, "TMAX", tmax.Obs)
	assert.InDelta(t, 5.6, out.At(0).Value, 1e-9)
	assert.InDelta(t, 6.5, out.At(2).Value, 1e-9)
	assert.True(t, out.At(30).Missing())

	for d := 1; d <= 30; d++ {
		r := out.At(31 + d - 1)
		require.Equal(t, "TMIN", r.Obs)
		require.Equal(t, d, r.Day)
		want := (10 + 30*float64(d-1)/29) / models.ScaleFactor
		assert.InDelta(t, want, r.Value, 1e-9, "day %d", d)
	}
	assert.True(t, out.At(61).Missing())
}

func TestInterpolate_EmptyGroupAborts(t *testing.T) {
	tbl := parseSample(t)

	out, report, err := Interpolate(tbl, models.ColumnDay)
	assert.Nil(t, out)
	assert.Nil(t, report)

	var interpErr *models.InterpolationError
	require.ErrorAs(t, err, &interpErr)
	assert.Equal(t, "station=USC00011084 year=1950 month=4 obs=PRCP", interpErr.Group)
}

func TestInterpolate_SkipEmptyGroups(t *testing.T) {
	tbl := parseSample(t)

	out, report, err := Interpolate(tbl, models.ColumnDay, WithSkipEmptyGroups())
	require.NoError(t, err)

	assert.Equal(t, tbl.Len(), out.Len())
	assert.Equal(t, 9, report.Groups)
	assert.Equal(t, []string{"station=USC00011084 year=1950 month=4 obs=PRCP"}, report.SkippedGroups)
	assert.Equal(t, 29, report.Filled)
	assert.Equal(t, 37, report.Unfilled)
	assert.Equal(t, 242, report.Rescaled)
	assert.Equal(t, 37, out.Missing())
}

func TestInterpolate_YearAxis(t *testing.T) {
	tbl := build(t,
		makeLine(1900, 1, "TMAX", 10, 100),
		makeLine(1901, 1, "TMAX", S, S),
		makeLine(1903, 1, "TMAX", 40, 130),
	)

	out, report, err := Interpolate(tbl, models.ColumnYear, WithSkipEmptyGroups())
	require.NoError(t, err)

	// one group per (month, day, obs); days 3..31 have no valid values
	assert.Equal(t, 31, report.Groups)
	assert.Len(t, report.SkippedGroups, 29)
	assert.Equal(t, "station=USC00011084 month=1 day=3 obs=TMAX", report.SkippedGroups[0])

	jan1901 := 31
	assert.Equal(t, 1901, out.At(jan1901).Year)
	assert.InDelta(t, 2.0, out.At(jan1901).Value, 1e-9)
	assert.InDelta(t, 11.0, out.At(jan1901+1).Value, 1e-9)
}

func TestInterpolate_StationsStaySeparate(t *testing.T) {
	row := func(station string, day int, v float64) models.Row {
		return models.Row{Station: station, Year: 1950, Month: 4, Day: day, Obs: "TMAX", Value: v}
	}
	tbl := NewTable([]models.Row{
		row("USC00011084", 1, 100), row("USC00011084", 2, S), row("USC00011084", 3, 100),
		row("ASN00001000", 1, S), row("ASN00001000", 2, 900), row("ASN00001000", 3, S),
	}, UnitsRaw)

	out, report, err := Interpolate(tbl, models.ColumnDay, WithEdgePolicy(EdgeNearest))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Groups)
	assert.Equal(t, 3, report.Filled)
	assert.Equal(t, []float64{10, 10, 10, 90, 90, 90}, toFloats(ToRecords(out)["value"]))
	assert.Equal(t, "ASN00001000", out.At(3).Station)
}

func TestInterpolate_EmptyGroupNamesStation(t *testing.T) {
	tbl := NewTable([]models.Row{
		{Station: "USC00011084", Year: 1950, Month: 4, Day: 1, Obs: "PRCP", Value: 5},
		{Station: "ASN00001000", Year: 1950, Month: 4, Day: 1, Obs: "PRCP", Value: S},
	}, UnitsRaw)

	_, _, err := Interpolate(tbl, models.ColumnDay)
	var interpErr *models.InterpolationError
	require.ErrorAs(t, err, &interpErr)
	assert.Equal(t, "station=ASN00001000 year=1950 month=4 obs=PRCP", interpErr.Group)
}

func TestInterpolate_SortsGroupByAxis(t *testing.T) {
	// input rows are out of axis order; filling must follow the axis
	tbl := NewTable([]models.Row{
		{Year: 1950, Month: 3, Day: 1, Obs: "TMAX", Value: 30},
		{Year: 1950, Month: 1, Day: 1, Obs: "TMAX", Value: 10},
		{Year: 1950, Month: 2, Day: 1, Obs: "TMAX", Value: S},
	}, UnitsRaw)

	out, _, err := Interpolate(tbl, models.ColumnMonth)
	require.NoError(t, err)

	assert.Equal(t, 3, out.At(0).Month)
	assert.Equal(t, 2, out.At(2).Month)
	assert.InDelta(t, 2.0, out.At(2).Value, 1e-9)
}

func TestInterpolate_PhysicalTableNotRescaled(t *testing.T) {
	tbl := build(t, makeLine(1950, 4, "TMAX", 50, S, 70))

	once, _, err := Interpolate(tbl, models.ColumnDay)
	require.NoError(t, err)

	twice, report, err := Interpolate(once, models.ColumnDay)
	require.NoError(t, err)

	assert.True(t, report.AlreadyScaled)
	assert.Equal(t, 0, report.Rescaled)
	assert.Equal(t, UnitsPhysical, twice.Units())
	assert.InDelta(t, 6.0, twice.At(1).Value, 1e-9)
	assert.InDelta(t, 7.0, twice.At(2).Value, 1e-9)
}

func TestInterpolate_InputUntouched(t *testing.T) {
	tbl := build(t, makeLine(1950, 4, "TMAX", 50, S, 70))

	_, _, err := Interpolate(tbl, models.ColumnDay)
	require.NoError(t, err)

	assert.Equal(t, UnitsRaw, tbl.Units())
	assert.Equal(t, 50.0, tbl.At(0).Value)
	assert.True(t, tbl.At(1).Missing())
}

func TestInterpolate_InvalidArguments(t *testing.T) {
	tbl := build(t, makeLine(1950, 4, "TMAX", 50))

	var validation *models.ValidationError

	_, _, err := Interpolate(tbl, models.ColumnObs)
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "axis", validation.Field)

	_, _, err = Interpolate(tbl, models.ColumnValue)
	require.ErrorAs(t, err, &validation)

	_, _, err = Interpolate(tbl, models.ColumnDay, WithEdgePolicy("sideways"))
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "edge", validation.Field)
}

func TestParseEdgePolicy(t *testing.T) {
	for in, want := range map[string]EdgePolicy{"": EdgeLeave, "LEAVE": EdgeLeave, "nearest": EdgeNearest, " drop ": EdgeDrop} {
		got, err := ParseEdgePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEdgePolicy("clamp")
	assert.Error(t, err)
}
