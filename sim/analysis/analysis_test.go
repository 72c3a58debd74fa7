package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds2os-caching/cachetrace/internal/testutil"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

func loadSample(t *testing.T) []trace.Record {
	t.Helper()
	tr, err := trace.LoadFile(testutil.SampleTracePath(t))
	require.NoError(t, err)
	return tr.Records
}

func TestNormalOnly_DropsAnomalousRequests(t *testing.T) {
	records := loadSample(t)

	normal := NormalOnly(records)

	assert.Len(t, normal, len(records)-1)
	for _, r := range normal {
		assert.Equal(t, trace.NormalityNormal, r.Normality)
	}
}

func TestWriteInterarrivals_SingleSensor(t *testing.T) {
	// GIVEN the sample trace where tempin3 writes at +1000, +4000, +9000
	records := loadSample(t)

	// WHEN computing gaps for tempin3
	gaps := WriteInterarrivals(records, "tempin3")

	// THEN gaps between successive writes are returned
	assert.Equal(t, []float64{3000, 5000}, gaps)
	assert.Empty(t, WriteInterarrivals(records, "movement4"), "reader-only source has no writes")
}

func TestWriteInterarrivalsByObject_OmitsSingleWriteObjects(t *testing.T) {
	records := loadSample(t)

	gaps := WriteInterarrivalsByObject(records)

	assert.Equal(t, map[string][]float64{testutil.SampleObject: {3000, 5000}}, gaps)
}

func TestSummarize_KnownSample(t *testing.T) {
	s, err := Summarize([]float64{4, 1, 3, 2})

	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 1.0, s.Q1)
	assert.Equal(t, 2.0, s.Median)
	assert.Equal(t, 3.0, s.Q3)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.StdDev, 1e-12)
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	_, err := Summarize(xs)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestSummarize_SingleValue_ZeroStdDev(t *testing.T) {
	s, err := Summarize([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.Median)
	assert.Zero(t, s.StdDev)
}

func TestSummarize_Empty_ReturnsError(t *testing.T) {
	_, err := Summarize(nil)
	assert.Error(t, err)
}

func TestRooms_GroupsSourcesByLocation(t *testing.T) {
	records := loadSample(t)

	rooms := Rooms(records)

	assert.Equal(t, map[string][]string{
		"BedroomParents": {"/agent2/lightcontrol2"},
		"Kitchen":        {"/agent3/tempin3"},
		"Garage":         {"/agent4/movement4"},
		"Bathroom":       {"/agent1/washingmachine1"},
	}, rooms)
}
