// Package manifest keeps the durable record of sync progress. The
// manifest is the only mutable state shared by concurrent float
// pipelines, so every mutation goes through one mutex-guarded writer.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/filex"
	"github.com/oceanatlas/argosync/internal/logging"
)

// Version is bumped when the persisted layout changes.
const Version = 2

// FileEntry records one persisted download.
type FileEntry struct {
	FloatID      string    `json:"float_id"`
	Size         int64     `json:"size"`
	DateUpdate   string    `json:"date_update,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// FloatEntry tracks per-float pipeline progress. Downloaded means the
// mandatory profile file is on disk with nonzero size; Ingested means
// the upload transaction committed. A float that downloaded but failed
// upload keeps Downloaded=true so the next run retries only the upload
// stage.
type FloatEntry struct {
	Downloaded bool      `json:"downloaded"`
	Ingested   bool      `json:"ingested"`
	Failed     bool      `json:"failed"`
	LastError  string    `json:"last_error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type document struct {
	Version    int                   `json:"version"`
	LastSync   time.Time             `json:"last_sync"`
	TotalFiles int                   `json:"total_files"`
	TotalBytes int64                 `json:"total_bytes"`
	Floats     map[string]FloatEntry `json:"floats"`
	Files      map[string]FileEntry  `json:"files"`
}

func emptyDocument() document {
	return document{
		Version: Version,
		Floats:  make(map[string]FloatEntry),
		Files:   make(map[string]FileEntry),
	}
}

// Manifest is the single-writer view over the persisted document.
type Manifest struct {
	mu     sync.Mutex
	path   string
	logger logging.Logger
	doc    document
}

// Load reads the manifest from path. A missing or corrupt file yields an
// empty manifest: corruption is logged as a warning and never fatal.
func Load(ctx context.Context, path string, logger logging.Logger) *Manifest {
	m := &Manifest{path: path, logger: logger, doc: emptyDocument()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(ctx, "manifest unreadable, starting empty", "path", path, "error", err)
		}
		return m
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn(ctx, "manifest reset", "path", path,
			"error", fmt.Errorf("%w: %v", common.ErrManifestCorrupt, err))
		return m
	}
	if doc.Floats == nil {
		doc.Floats = make(map[string]FloatEntry)
	}
	if doc.Files == nil {
		doc.Files = make(map[string]FileEntry)
	}
	doc.Version = Version
	m.doc = doc
	return m
}

// Save persists the manifest with write-to-temp plus atomic rename.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manifest) saveLocked() error {
	data, err := json.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := filex.WriteFileAtomic(m.path, data, 0o644); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// RecordFile registers a completed download and updates the totals.
func (m *Manifest) RecordFile(path, floatID, dateUpdate string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.doc.Files[path]; ok {
		m.doc.TotalBytes -= prev.Size
	} else {
		m.doc.TotalFiles++
	}
	m.doc.TotalBytes += size
	m.doc.Files[path] = FileEntry{
		FloatID:      floatID,
		Size:         size,
		DateUpdate:   dateUpdate,
		DownloadedAt: time.Now().UTC(),
	}
}

// FileUpToDate reports whether path was already downloaded with the same
// remote update stamp and a nonzero size.
func (m *Manifest) FileUpToDate(path, dateUpdate string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.doc.Files[path]
	return ok && entry.Size > 0 && entry.DateUpdate == dateUpdate
}

// MarkDownloaded records that the float's mandatory file set is on disk.
func (m *Manifest) MarkDownloaded(floatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.doc.Floats[floatID]
	e.Downloaded = true
	e.Failed = false
	e.LastError = ""
	e.UpdatedAt = time.Now().UTC()
	m.doc.Floats[floatID] = e
}

// MarkIngested records that the float's upload transaction committed.
func (m *Manifest) MarkIngested(floatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.doc.Floats[floatID]
	e.Downloaded = true
	e.Ingested = true
	e.Failed = false
	e.LastError = ""
	e.UpdatedAt = time.Now().UTC()
	m.doc.Floats[floatID] = e
}

// MarkFailed records a float failure with its reason. Download progress
// is kept so a float that only failed at the upload stage is not
// re-downloaded.
func (m *Manifest) MarkFailed(floatID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.doc.Floats[floatID]
	e.Failed = true
	e.LastError = reason
	e.UpdatedAt = time.Now().UTC()
	m.doc.Floats[floatID] = e
}

// Downloaded reports whether the float's files are already on disk.
func (m *Manifest) Downloaded(floatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Floats[floatID].Downloaded
}

// Ingested reports whether the float has been fully loaded into storage.
func (m *Manifest) Ingested(floatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Floats[floatID].Ingested
}

// Failed reports whether the float's last run ended in failure.
func (m *Manifest) Failed(floatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Floats[floatID].Failed
}

// Float returns a copy of the float's entry.
func (m *Manifest) Float(floatID string) (FloatEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.doc.Floats[floatID]
	return e, ok
}

// TouchLastSync stamps the end of a sync run.
func (m *Manifest) TouchLastSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.LastSync = time.Now().UTC()
}

// Totals returns the running file count and byte count.
func (m *Manifest) Totals() (files int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.TotalFiles, m.doc.TotalBytes
}

// PendingIngest lists floats that were downloaded but whose data never
// reached the database, sorted for deterministic scheduling.
func (m *Manifest) PendingIngest() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, e := range m.doc.Floats {
		if e.Downloaded && !e.Ingested && !e.Failed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DownloadedFloats lists every float with a complete local copy.
func (m *Manifest) DownloadedFloats() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, e := range m.doc.Floats {
		if e.Downloaded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
