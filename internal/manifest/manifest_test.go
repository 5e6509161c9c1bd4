package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanatlas/argosync/internal/logging"
)

func newManifest(t *testing.T) (*Manifest, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	return Load(context.Background(), path, logging.NewNop()), path
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	m, _ := newManifest(t)
	files, bytes := m.Totals()
	assert.Zero(t, files)
	assert.Zero(t, bytes)
	assert.False(t, m.Downloaded("2902224"))
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m := Load(context.Background(), path, logging.NewNop())
	files, _ := m.Totals()
	assert.Zero(t, files)
}

func TestSaveAndReload(t *testing.T) {
	m, path := newManifest(t)
	m.RecordFile("incois/2902224/2902224_prof.nc", "2902224", "20250710", 1024)
	m.MarkDownloaded("2902224")
	m.MarkIngested("2902224")
	m.MarkFailed("2902267", "prof download exhausted retries")
	m.TouchLastSync()
	require.NoError(t, m.Save())

	re := Load(context.Background(), path, logging.NewNop())
	assert.True(t, re.Downloaded("2902224"))
	assert.True(t, re.Ingested("2902224"))
	assert.False(t, re.Failed("2902224"))
	assert.True(t, re.Failed("2902267"))

	e, ok := re.Float("2902267")
	require.True(t, ok)
	assert.Equal(t, "prof download exhausted retries", e.LastError)

	files, bytes := re.Totals()
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(1024), bytes)
}

func TestSave_TopLevelKeys(t *testing.T) {
	m, path := newManifest(t)
	m.RecordFile("incois/1/1_prof.nc", "1", "", 10)
	require.NoError(t, m.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"version", "last_sync", "total_files", "total_bytes", "floats", "files"} {
		assert.Contains(t, doc, key)
	}
}

func TestRecordFile_ReplacementUpdatesTotals(t *testing.T) {
	m, _ := newManifest(t)
	m.RecordFile("p", "1", "a", 100)
	m.RecordFile("p", "1", "b", 250)

	files, bytes := m.Totals()
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(250), bytes)
}

func TestFileUpToDate(t *testing.T) {
	m, _ := newManifest(t)
	m.RecordFile("p", "1", "20250710", 100)

	assert.True(t, m.FileUpToDate("p", "20250710"))
	assert.False(t, m.FileUpToDate("p", "20250711"), "changed remote stamp forces re-download")
	assert.False(t, m.FileUpToDate("q", "20250710"))
}

func TestMarkFailed_KeepsDownloadProgress(t *testing.T) {
	m, _ := newManifest(t)
	m.MarkDownloaded("42")
	m.MarkFailed("42", "upload rolled back")

	assert.True(t, m.Downloaded("42"), "upload failure must not force re-download")
	assert.True(t, m.Failed("42"))
	assert.False(t, m.Ingested("42"))
}

func TestConcurrentMutation(t *testing.T) {
	m, _ := newManifest(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.RecordFile(filepath.Join("dac", "f", string(rune('a'+n%26))), "f", "", 1)
			m.MarkDownloaded("f")
		}(i)
	}
	wg.Wait()

	files, bytes := m.Totals()
	assert.Equal(t, 26, files)
	assert.Equal(t, int64(26), bytes)
}

func TestPendingIngest(t *testing.T) {
	m := Load(context.Background(), filepath.Join(t.TempDir(), "manifest.json"), logging.NewNop())

	m.MarkDownloaded("1001") // downloaded, not yet ingested
	m.MarkDownloaded("1002")
	m.MarkIngested("1002") // fully processed
	m.MarkFailed("1003", "prof missing")

	assert.Equal(t, []string{"1001"}, m.PendingIngest())
	assert.Equal(t, []string{"1001", "1002"}, m.DownloadedFloats())
}
