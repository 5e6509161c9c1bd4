// Package argo defines the core data model: remote file descriptors,
// float metadata and per-profile records extracted from aggregate
// NetCDF files.
package argo

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// FileType identifies one of the four aggregate files published per float.
type FileType string

const (
	FileMeta FileType = "meta"
	FileTech FileType = "tech"
	FileProf FileType = "prof"
	FileTraj FileType = "traj"
)

// fileSuffixes maps a FileType to the filename suffix used by the archive.
var fileSuffixes = map[FileType]string{
	FileMeta: "_meta.nc",
	FileTech: "_tech.nc",
	FileProf: "_prof.nc",
	FileTraj: "_Rtraj.nc",
}

// AggregateTypes lists the per-float file types in download order.
// FileProf is the only mandatory one; the rest are best-effort.
var AggregateTypes = []FileType{FileMeta, FileTech, FileProf, FileTraj}

// Mandatory reports whether a float sync fails outright when this file
// type cannot be downloaded.
func (t FileType) Mandatory() bool {
	return t == FileProf
}

// Suffix returns the filename suffix for the file type ("_prof.nc" etc.).
func (t FileType) Suffix() string {
	return fileSuffixes[t]
}

// TypeFromFileName derives the file type from an aggregate file name.
func TypeFromFileName(name string) (FileType, bool) {
	for t, suffix := range fileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return t, true
		}
	}
	return "", false
}

// RemoteFile describes one file in the remote archive. Immutable;
// change detection compares (Path, DateUpdate).
type RemoteFile struct {
	Path       string
	Type       FileType
	DateUpdate string
	FloatID    string
}

// FileName returns the last path segment.
func (f RemoteFile) FileName() string {
	return path.Base(f.Path)
}

// AggregateFiles returns the descriptors of the four aggregate files for
// one float under a DAC partition, e.g. "incois/2902224/2902224_prof.nc".
func AggregateFiles(dac, floatID string) []RemoteFile {
	files := make([]RemoteFile, 0, len(AggregateTypes))
	for _, t := range AggregateTypes {
		name := floatID + t.Suffix()
		files = append(files, RemoteFile{
			Path:    fmt.Sprintf("%s/%s/%s", dac, floatID, name),
			Type:    t,
			FloatID: floatID,
		})
	}
	return files
}

// QualityStatus distinguishes delayed-mode from real-time profiles.
type QualityStatus string

const (
	QualityRealTime QualityStatus = "REAL_TIME"
	QualityDelayed  QualityStatus = "DELAYED"
)

// Measurement is the sensor readout at one depth level. A measurement
// with all four sensor values nil is invalid and is dropped by the
// parser before it reaches a ProfileRecord.
type Measurement struct {
	Depth       float64  `json:"depth"`
	Temperature *float64 `json:"temperature,omitempty"`
	Salinity    *float64 `json:"salinity,omitempty"`
	Oxygen      *float64 `json:"oxygen,omitempty"`
	Chlorophyll *float64 `json:"chlorophyll,omitempty"`
}

// Empty reports whether all four sensor values are absent.
func (m Measurement) Empty() bool {
	return m.Temperature == nil && m.Salinity == nil && m.Oxygen == nil && m.Chlorophyll == nil
}

// ProfileRecord is one vertical cast. Natural key is (FloatID, CycleNumber);
// re-ingesting the same cycle overwrites, never duplicates.
type ProfileRecord struct {
	FloatID       string
	CycleNumber   int
	ProfileTime   time.Time
	Latitude      float64
	Longitude     float64
	Measurements  []Measurement
	MaxDepth      *float64
	QualityStatus QualityStatus
}

// FloatMetadata holds deployment facts extracted from the metadata file.
// Immutable after parse except DeploymentStatus, which the upload
// pipeline may overwrite on conflict.
type FloatMetadata struct {
	FloatID          string
	Model            *string
	LaunchDate       *time.Time
	LaunchLat        *float64
	LaunchLon        *float64
	DeploymentStatus string
}
