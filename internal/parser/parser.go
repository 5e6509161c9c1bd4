// Package parser extracts float metadata and profile records from
// aggregate NetCDF datasets. Sensor grids are read once per variable
// and walked per profile; values are validated against the archive's
// NaN and 99999 fill conventions before they reach a record.
package parser

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/logging"
	"github.com/oceanatlas/argosync/internal/ncdf"
)

// Values at or above this are variable fill, not measurements.
const sentinel = 99999.0

// juldEpoch anchors JULD day offsets (days since 1950-01-01 UTC).
var juldEpoch = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)

// openDataset is a seam for tests that feed in-memory datasets.
var openDataset = ncdf.Open

// Stats counts what one profile parse kept and dropped.
type Stats struct {
	ProfilesTotal     int
	ProfilesKept      int
	ProfilesDropped   int
	LevelsKept        int
	TimeSubstitutions int
}

// Parser turns datasets into argo records.
type Parser struct {
	logger logging.Logger
	now    func() time.Time
}

func New(logger logging.Logger) *Parser {
	return &Parser{logger: logger, now: time.Now}
}

// QualityFromFileName classifies a profile file by its delayed-mode
// marker: files republished after scientific QC carry a "D" prefix.
func QualityFromFileName(name string) argo.QualityStatus {
	if strings.HasPrefix(filepath.Base(name), "D") {
		return argo.QualityDelayed
	}
	return argo.QualityRealTime
}

// ParseMetadataFile reads a _meta.nc file from disk.
func (p *Parser) ParseMetadataFile(ctx context.Context, path, floatID string) (*argo.FloatMetadata, error) {
	ds, err := openDataset(path)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return p.ParseMetadata(ctx, ds, floatID), nil
}

// ParseMetadata extracts deployment facts. Every field is optional;
// a metadata file with nothing usable still yields a record carrying
// the float ID.
func (p *Parser) ParseMetadata(ctx context.Context, ds *ncdf.Dataset, floatID string) *argo.FloatMetadata {
	md := &argo.FloatMetadata{FloatID: floatID, DeploymentStatus: "ACTIVE"}

	if ds.Has("LAUNCH_DATE") {
		if raw, err := ds.String("LAUNCH_DATE"); err == nil {
			if ts, ok := parseLaunchDate(raw); ok {
				md.LaunchDate = &ts
			} else if raw != "" {
				p.logger.Warn(ctx, "unparseable launch date", "float_id", floatID, "value", raw)
			}
		}
	}
	if ds.Has("LAUNCH_LATITUDE") {
		if v, err := ds.Float64("LAUNCH_LATITUDE"); err == nil && !math.IsNaN(v) {
			md.LaunchLat = &v
		}
	}
	if ds.Has("LAUNCH_LONGITUDE") {
		if v, err := ds.Float64("LAUNCH_LONGITUDE"); err == nil && !math.IsNaN(v) {
			md.LaunchLon = &v
		}
	}
	if ds.Has("PLATFORM_TYPE") {
		if v, err := ds.String("PLATFORM_TYPE"); err == nil && v != "" {
			md.Model = &v
		}
	}

	p.logger.Info(ctx, "metadata parsed",
		"float_id", floatID,
		"has_launch_date", md.LaunchDate != nil,
		"has_position", md.LaunchLat != nil && md.LaunchLon != nil)
	return md
}

// parseLaunchDate accepts YYYYMMDDHHMMSS with a YYYYMMDD fallback.
func parseLaunchDate(raw string) (time.Time, bool) {
	if len(raw) >= 14 {
		if ts, err := time.Parse("20060102150405", raw[:14]); err == nil {
			return ts, true
		}
	}
	if len(raw) >= 8 {
		if ts, err := time.Parse("20060102", raw[:8]); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseProfilesFile reads a _prof.nc file from disk. Quality status is
// taken from the file name.
func (p *Parser) ParseProfilesFile(ctx context.Context, path, floatID string) ([]argo.ProfileRecord, Stats, error) {
	ds, err := openDataset(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("profiles %s: %w", path, err)
	}
	return p.ParseProfiles(ctx, ds, floatID, QualityFromFileName(path))
}

// ParseProfiles walks the N_PROF x N_LEVELS grids and emits one record
// per usable profile. A profile is dropped when its coordinates are
// invalid or no depth level retains a sensor value; a level is dropped
// when all four sensors are fill.
func (p *Parser) ParseProfiles(ctx context.Context, ds *ncdf.Dataset, floatID string, quality argo.QualityStatus) ([]argo.ProfileRecord, Stats, error) {
	lats := vectorOrNil(ds, "LATITUDE")
	lons := vectorOrNil(ds, "LONGITUDE")
	cycles := vectorOrNil(ds, "CYCLE_NUMBER")
	juld := vectorOrNil(ds, "JULD")

	pres := matrixOrNil(ds, "PRES")
	temp := matrixOrNil(ds, "TEMP")
	psal := matrixOrNil(ds, "PSAL")
	doxy := matrixOrNil(ds, "DOXY")
	chla := matrixOrNil(ds, "CHLA")

	nProf := profileCount(lats, juld, pres, temp)
	if nProf == 0 {
		return nil, Stats{}, fmt.Errorf("float %s: %w", floatID, common.ErrNoProfiles)
	}

	stats := Stats{ProfilesTotal: nProf}
	records := make([]argo.ProfileRecord, 0, nProf)

	for i := 0; i < nProf; i++ {
		lat, latOK := vectorAt(lats, i)
		lon, lonOK := vectorAt(lons, i)
		if !latOK || !lonOK || math.IsNaN(lat) || math.IsNaN(lon) {
			stats.ProfilesDropped++
			continue
		}

		rec := argo.ProfileRecord{
			FloatID:       floatID,
			CycleNumber:   cycleNumber(cycles, i),
			ProfileTime:   p.profileTime(ctx, juld, i, floatID, &stats),
			Latitude:      lat,
			Longitude:     lon,
			QualityStatus: quality,
		}

		var maxDepth float64
		nLevels := levelCount(i, pres, temp, psal, doxy, chla)
		for j := 0; j < nLevels; j++ {
			m := argo.Measurement{
				Temperature: sensorAt(temp, i, j),
				Salinity:    sensorAt(psal, i, j),
				Oxygen:      sensorAt(doxy, i, j),
				Chlorophyll: sensorAt(chla, i, j),
			}
			if m.Empty() {
				continue
			}
			if d := sensorAt(pres, i, j); d != nil {
				m.Depth = *d
			}
			rec.Measurements = append(rec.Measurements, m)
			if m.Depth > maxDepth {
				maxDepth = m.Depth
			}
		}

		if len(rec.Measurements) == 0 {
			stats.ProfilesDropped++
			continue
		}
		if maxDepth > 0 {
			rec.MaxDepth = &maxDepth
		}
		stats.ProfilesKept++
		stats.LevelsKept += len(rec.Measurements)
		records = append(records, rec)
	}

	p.logger.Info(ctx, "profiles parsed",
		"float_id", floatID,
		"total", stats.ProfilesTotal,
		"kept", stats.ProfilesKept,
		"dropped", stats.ProfilesDropped,
		"levels", stats.LevelsKept,
		"time_substitutions", stats.TimeSubstitutions)
	return records, stats, nil
}

// profileTime converts a JULD day offset to UTC. Unusable offsets fall
// back to the wall clock; that substitution is logged so downstream
// consumers know the timestamp is synthetic.
func (p *Parser) profileTime(ctx context.Context, juld []float64, i int, floatID string, stats *Stats) time.Time {
	if v, ok := vectorAt(juld, i); ok && valid(v) {
		secs := v * 86400.0
		return juldEpoch.Add(time.Duration(secs * float64(time.Second))).UTC()
	}
	stats.TimeSubstitutions++
	p.logger.Warn(ctx, "profile time missing, substituting current time",
		"float_id", floatID, "profile_index", i)
	return p.now().UTC()
}

// cycleNumber falls back to the 1-based slot position when the cycle
// variable is absent or fill.
func cycleNumber(cycles []float64, i int) int {
	if v, ok := vectorAt(cycles, i); ok && valid(v) && v >= 0 {
		return int(v)
	}
	return i + 1
}

func valid(v float64) bool {
	return !math.IsNaN(v) && v < sentinel
}

func vectorOrNil(ds *ncdf.Dataset, name string) []float64 {
	if !ds.Has(name) {
		return nil
	}
	vec, err := ds.Float64s(name)
	if err != nil {
		return nil
	}
	return vec
}

func matrixOrNil(ds *ncdf.Dataset, name string) [][]float64 {
	if !ds.Has(name) {
		return nil
	}
	m, err := ds.Float64Matrix(name)
	if err != nil {
		return nil
	}
	return m
}

func vectorAt(vec []float64, i int) (float64, bool) {
	if i < 0 || i >= len(vec) {
		return 0, false
	}
	return vec[i], true
}

// sensorAt returns the value at (profile, level) or nil when out of
// range or fill.
func sensorAt(m [][]float64, i, j int) *float64 {
	if i < 0 || i >= len(m) || j < 0 || j >= len(m[i]) {
		return nil
	}
	v := m[i][j]
	if !valid(v) {
		return nil
	}
	return &v
}

func profileCount(lats, juld []float64, grids ...[][]float64) int {
	n := len(lats)
	if len(juld) > n {
		n = len(juld)
	}
	for _, g := range grids {
		if len(g) > n {
			n = len(g)
		}
	}
	return n
}

func levelCount(i int, grids ...[][]float64) int {
	n := 0
	for _, g := range grids {
		if i < len(g) && len(g[i]) > n {
			n = len(g[i])
		}
	}
	return n
}
