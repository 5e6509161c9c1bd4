package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/logging"
)

const sampleIndex = `# Title : Profile directory file of the Argo GDAC
# Date of update : 20250801120000
file,date,latitude,longitude,ocean,profiler_type,institution,date_update
incois/2902224/profiles/R2902224_001.nc,20190315000000,-5.2,71.5,I,846,IN,20250710010203
incois/2902224/profiles/R2902224_002.nc,20190325000000,-5.1,71.4,I,846,IN,20250710010204

incois/2902267/profiles/D2902267_001.nc,20200101000000,-3.0,70.0,I,846,IN,20250711000000
aoml/1901234/profiles/R1901234_001.nc,20200101000000,10.0,-40.0,A,846,US,20250711000000
coriolis/shortline
`

func TestParse(t *testing.T) {
	ix, err := Parse(strings.NewReader(sampleIndex), "incois")
	require.NoError(t, err)

	require.Len(t, ix.Floats, 2)
	assert.Equal(t, []string{"2902224", "2902267"}, ix.FloatIDs())
	assert.Len(t, ix.Floats["2902224"], 2)

	f := ix.Floats["2902224"][0]
	assert.Equal(t, "incois/2902224/profiles/R2902224_001.nc", f.Path)
	assert.Equal(t, "2902224", f.FloatID)
	assert.Equal(t, "20250710010203", f.DateUpdate)
}

func TestParse_SkipsCommentsBlanksAndForeignDACs(t *testing.T) {
	ix, err := Parse(strings.NewReader(sampleIndex), "aoml")
	require.NoError(t, err)
	require.Len(t, ix.Floats, 1)
	assert.Contains(t, ix.Floats, "1901234")
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+ProfileIndexFile, r.URL.Path)
		w.Write([]byte(sampleIndex))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "incois", srv.Client(), 3, time.Millisecond, logging.NewNop())
	ix, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, ix.Floats, 2)
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(sampleIndex))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "incois", srv.Client(), 3, time.Millisecond, logging.NewNop())
	ix, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, ix.Floats, 2)
}

func TestFetch_PermanentErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "incois", srv.Client(), 3, time.Millisecond, logging.NewNop())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrIndexUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ExhaustedRetriesReportIndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "incois", srv.Client(), 2, time.Millisecond, logging.NewNop())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrIndexUnavailable))
}
