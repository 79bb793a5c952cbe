package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghcn-daily/internal/dly"
	"ghcn-daily/internal/models"
	"ghcn-daily/pkg/logging"
)

var samplePath = filepath.Join("..", "..", "internal", "dly", "testdata", "sample.dly")

func quietLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("inspect-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func inspect(t *testing.T, opts options) output {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), opts, quietLogger(), &buf))

	var out output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRun_Raw(t *testing.T) {
	out := inspect(t, options{file: samplePath, summary: true})

	assert.Equal(t, dly.UnitsRaw, out.Units)
	assert.Equal(t, 279, out.Count)
	assert.Equal(t, 66, out.Missing)
	assert.Nil(t, out.Records)
}

func TestRun_FilterAndInterpolate(t *testing.T) {
	out := inspect(t, options{
		file:        samplePath,
		startYear:   1950,
		filters:     filterFlags{"obs:TMAX"},
		interpolate: "day",
		edge:        "nearest",
	})

	assert.Equal(t, dly.UnitsPhysical, out.Units)
	require.Equal(t, 31, out.Count)
	require.NotNil(t, out.Interpolation)
	assert.Equal(t, 2, out.Interpolation.Filled)
	assert.Equal(t, 0, out.Missing)
	assert.InDelta(t, 6.5, out.Records["value"][2].(float64), 1e-9)
}

func TestRun_CalendarPruning(t *testing.T) {
	out := inspect(t, options{file: samplePath, calendar: true, summary: true})
	assert.Equal(t, 272, out.Count)
}

func TestRun_SkipMalformed(t *testing.T) {
	content, err := os.ReadFile(samplePath)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "broken.dly")
	broken := string(content) + "USC00011084195013TMAX short\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))

	var buf bytes.Buffer
	err = run(context.Background(), options{file: path, summary: true}, quietLogger(), &buf)
	var malformed *models.MalformedRecordError
	require.ErrorAs(t, err, &malformed)

	out := inspect(t, options{file: path, skipMalformed: true, summary: true})
	assert.Equal(t, 1, out.Malformed)
	assert.Equal(t, 279, out.Count)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want string
	}{
		{"missing file", options{file: "does-not-exist.dly"}, "does-not-exist.dly"},
		{"bad filter", options{file: samplePath, filters: filterFlags{"elevation:1"}}, "elevation"},
		{"bad axis", options{file: samplePath, interpolate: "week"}, "week"},
		{"bad edge", options{file: samplePath, interpolate: "day", edge: "wrap"}, "edge"},
		{"empty group", options{file: samplePath, interpolate: "day"}, "PRCP"},
		{"inverted years", options{file: samplePath, startYear: 1950, endYear: 1900}, "end_year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := run(context.Background(), tt.opts, quietLogger(), &buf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestFilterFlags(t *testing.T) {
	var f filterFlags
	require.NoError(t, f.Set("year:1950"))
	require.NoError(t, f.Set("obs:ne:PRCP"))
	assert.Equal(t, "year:1950,obs:ne:PRCP", f.String())
}
