package dly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRecords(t *testing.T) {
	tbl := build(t, makeLine(1950, 4, "TMAX", 50, S, 70))
	out, _, err := Interpolate(tbl, "day", WithEdgePolicy(EdgeDrop))
	require.NoError(t, err)

	records := ToRecords(out)
	require.Len(t, records, 5)

	assert.Equal(t, []any{1950, 1950, 1950}, records["year"])
	assert.Equal(t, []any{4, 4, 4}, records["month"])
	assert.Equal(t, []any{1, 2, 3}, records["day"])
	assert.Equal(t, []any{"TMAX", "TMAX", "TMAX"}, records["obs"])
	assert.InDeltaSlice(t, []float64{5, 6, 7}, toFloats(records["value"]), 1e-9)
}

func TestToRecords_Empty(t *testing.T) {
	records := ToRecords(NewTable(nil, UnitsRaw))

	require.Len(t, records, 5)
	for col, values := range records {
		assert.Empty(t, values, col)
	}
}

func toFloats(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.(float64)
	}
	return out
}
