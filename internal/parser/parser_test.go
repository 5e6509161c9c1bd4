package parser

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/logging"
	"github.com/oceanatlas/argosync/internal/ncdf"
)

func newTestParser() *Parser {
	p := New(logging.NewNop())
	p.now = func() time.Time {
		return time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestParseProfiles_DropsProfileWithNaNLatitude(t *testing.T) {
	nan := math.NaN()
	ds := ncdf.New(map[string]any{
		"LATITUDE":     []float64{10, 11, nan, 13, 14},
		"LONGITUDE":    []float64{70, 71, 72, 73, 74},
		"CYCLE_NUMBER": []float64{1, 2, 3, 4, 5},
		"JULD":         []float64{27000, 27010, 27020, 27030, 27040},
		"PRES": [][]float64{
			{5, 10}, {5, 10}, {5, 10}, {5, 10}, {5, 10},
		},
		"TEMP": [][]float64{
			{28, 27}, {28, 27}, {28, 27}, {28, 27}, {28, 27},
		},
	})

	recs, stats, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)

	assert.Len(t, recs, 4, "the NaN-latitude profile is dropped, the rest survive")
	assert.Equal(t, 5, stats.ProfilesTotal)
	assert.Equal(t, 4, stats.ProfilesKept)
	assert.Equal(t, 1, stats.ProfilesDropped)
	for _, r := range recs {
		assert.NotEqual(t, 3, r.CycleNumber)
	}
}

func TestParseProfiles_DropsLevelsWithAllSensorsFill(t *testing.T) {
	nan := math.NaN()
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10},
		"LONGITUDE": []float64{70},
		"JULD":      []float64{27000},
		"PRES":      [][]float64{{5, 10, 20, 30}},
		"TEMP":      [][]float64{{28, nan, 99999, 24}},
		"PSAL":      [][]float64{{35, nan, 999999, nan}},
	})

	recs, stats, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Levels 2 and 3 (0-based 1 and 2) carry only fill and disappear.
	m := recs[0].Measurements
	require.Len(t, m, 2)
	assert.Equal(t, 5.0, m[0].Depth)
	assert.Equal(t, 28.0, *m[0].Temperature)
	assert.Equal(t, 35.0, *m[0].Salinity)
	assert.Equal(t, 30.0, m[1].Depth)
	assert.Equal(t, 24.0, *m[1].Temperature)
	assert.Nil(t, m[1].Salinity)
	assert.Equal(t, 2, stats.LevelsKept)
}

func TestParseProfiles_MaxDepthMatchesDeepestRetainedLevel(t *testing.T) {
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10},
		"LONGITUDE": []float64{70},
		"JULD":      []float64{27000},
		"PRES":      [][]float64{{5, 2000, 100}},
		"TEMP":      [][]float64{{28, 4, 15}},
	})

	recs, _, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].MaxDepth)
	assert.Equal(t, 2000.0, *recs[0].MaxDepth)
}

func TestParseProfiles_DropsProfileWithNoLevels(t *testing.T) {
	nan := math.NaN()
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10, 11},
		"LONGITUDE": []float64{70, 71},
		"JULD":      []float64{27000, 27001},
		"PRES":      [][]float64{{5, 10}, {5, 10}},
		"TEMP":      [][]float64{{28, 27}, {nan, nan}},
	})

	recs, stats, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 1, stats.ProfilesDropped)
}

func TestParseProfiles_JuldConversion(t *testing.T) {
	// 2025-07-10 is 27584 days after 1950-01-01.
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10},
		"LONGITUDE": []float64{70},
		"JULD":      []float64{27584.5},
		"PRES":      [][]float64{{5}},
		"TEMP":      [][]float64{{28}},
	})

	recs, stats, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC), recs[0].ProfileTime)
	assert.Zero(t, stats.TimeSubstitutions)
}

func TestParseProfiles_InvalidTimeSubstitutesNow(t *testing.T) {
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10},
		"LONGITUDE": []float64{70},
		"JULD":      []float64{999999},
		"PRES":      [][]float64{{5}},
		"TEMP":      [][]float64{{28}},
	})

	p := newTestParser()
	recs, stats, err := p.ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, p.now(), recs[0].ProfileTime)
	assert.Equal(t, 1, stats.TimeSubstitutions)
}

func TestParseProfiles_CycleFallbackIsSlotPosition(t *testing.T) {
	nan := math.NaN()
	ds := ncdf.New(map[string]any{
		"LATITUDE":     []float64{10, 11},
		"LONGITUDE":    []float64{70, 71},
		"JULD":         []float64{27000, 27001},
		"CYCLE_NUMBER": []float64{7, nan},
		"PRES":         [][]float64{{5}, {5}},
		"TEMP":         [][]float64{{28}, {28}},
	})

	recs, _, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 7, recs[0].CycleNumber)
	assert.Equal(t, 2, recs[1].CycleNumber, "fill cycle falls back to 1-based slot")
}

func TestParseProfiles_MissingCycleVariable(t *testing.T) {
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10},
		"LONGITUDE": []float64{70},
		"JULD":      []float64{27000},
		"PRES":      [][]float64{{5}},
		"TEMP":      [][]float64{{28}},
	})

	recs, _, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].CycleNumber)
}

func TestParseProfiles_EmptyDataset(t *testing.T) {
	_, _, err := newTestParser().ParseProfiles(context.Background(), ncdf.New(map[string]any{}), "2902224", argo.QualityRealTime)
	assert.True(t, errors.Is(err, common.ErrNoProfiles))
}

func TestParseProfiles_OptionalSensors(t *testing.T) {
	ds := ncdf.New(map[string]any{
		"LATITUDE":  []float64{10},
		"LONGITUDE": []float64{70},
		"JULD":      []float64{27000},
		"PRES":      [][]float64{{5, 10}},
		"TEMP":      [][]float64{{28, 27}},
		"DOXY":      [][]float64{{210, 99999}},
		"CHLA":      [][]float64{{0.4, 0.3}},
	})

	recs, _, err := newTestParser().ParseProfiles(context.Background(), ds, "2902224", argo.QualityRealTime)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	m := recs[0].Measurements
	require.Len(t, m, 2)
	assert.Equal(t, 210.0, *m[0].Oxygen)
	assert.Nil(t, m[1].Oxygen)
	assert.Equal(t, 0.3, *m[1].Chlorophyll)
}

func TestQualityFromFileName(t *testing.T) {
	assert.Equal(t, argo.QualityRealTime, QualityFromFileName("2902224_prof.nc"))
	assert.Equal(t, argo.QualityDelayed, QualityFromFileName("D2902224_prof.nc"))
	assert.Equal(t, argo.QualityDelayed, QualityFromFileName("/cache/incois/2902224/D2902224_prof.nc"))
}

func TestParseMetadata(t *testing.T) {
	ds := ncdf.New(map[string]any{
		"LAUNCH_DATE":      "20230115103000",
		"LAUNCH_LATITUDE":  float64(-12.5),
		"LAUNCH_LONGITUDE": float64(80.25),
		"PLATFORM_TYPE":    "ARVOR   ",
	})

	md := newTestParser().ParseMetadata(context.Background(), ds, "2902224")
	require.NotNil(t, md)
	assert.Equal(t, "2902224", md.FloatID)
	require.NotNil(t, md.LaunchDate)
	assert.Equal(t, time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC), *md.LaunchDate)
	assert.Equal(t, -12.5, *md.LaunchLat)
	assert.Equal(t, 80.25, *md.LaunchLon)
	assert.Equal(t, "ARVOR", *md.Model)
	assert.Equal(t, "ACTIVE", md.DeploymentStatus)
}

func TestParseMetadata_DateOnlyLaunchDate(t *testing.T) {
	ds := ncdf.New(map[string]any{"LAUNCH_DATE": "20230115"})

	md := newTestParser().ParseMetadata(context.Background(), ds, "2902224")
	require.NotNil(t, md.LaunchDate)
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), *md.LaunchDate)
}

func TestParseMetadata_PartialIsStillValid(t *testing.T) {
	md := newTestParser().ParseMetadata(context.Background(), ncdf.New(map[string]any{}), "2902224")
	require.NotNil(t, md)
	assert.Equal(t, "2902224", md.FloatID)
	assert.Nil(t, md.LaunchDate)
	assert.Nil(t, md.LaunchLat)
	assert.Nil(t, md.Model)
}
