// Package index retrieves and parses the remote archive's global profile
// index into per-float file descriptors.
package index

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/logging"
)

// ProfileIndexFile is the listing published at the archive root.
const ProfileIndexFile = "ar_index_global_prof.txt"

// Index is the parsed remote listing, filtered to one DAC.
type Index struct {
	// Floats maps a float ID to the file descriptors listed for it.
	Floats map[string][]argo.RemoteFile
}

// FloatIDs returns the indexed float IDs in ascending order.
func (ix *Index) FloatIDs() []string {
	ids := make([]string, 0, len(ix.Floats))
	for id := range ix.Floats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fetcher downloads and parses the profile index over HTTP.
type Fetcher struct {
	baseURL    string
	dac        string
	client     *http.Client
	maxRetries uint64
	retryDelay time.Duration
	logger     logging.Logger
}

func NewFetcher(baseURL, dac string, client *http.Client, maxRetries int, retryDelay time.Duration, logger logging.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dac:        dac,
		client:     client,
		maxRetries: uint64(maxRetries),
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Fetch retrieves the index with retries and parses it. An index that
// cannot be fetched at all is reported as common.ErrIndexUnavailable:
// without it the run cannot make progress.
func (f *Fetcher) Fetch(ctx context.Context) (*Index, error) {
	url := f.baseURL + "/" + ProfileIndexFile
	f.logger.Info(ctx, "fetching index", "url", url)

	var ix *Index
	backoff := retry.WithMaxRetries(f.maxRetries, retry.NewConstant(f.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn(ctx, "index fetch attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			parsed, err := Parse(resp.Body, f.dac)
			if err != nil {
				return err
			}
			ix = parsed
			return nil
		case resp.StatusCode >= 500:
			err := fmt.Errorf("index fetch: status %d", resp.StatusCode)
			f.logger.Warn(ctx, "index fetch attempt failed", "status", resp.StatusCode)
			return retry.RetryableError(err)
		default:
			return fmt.Errorf("index fetch: status %d: %w", resp.StatusCode, common.ErrIndexUnavailable)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIndexUnavailable, err)
	}

	f.logger.Info(ctx, "index fetched", "floats", len(ix.Floats))
	return ix, nil
}

// Parse reads the line-oriented index. Each row is comma-separated:
//
//	file,date,latitude,longitude,ocean,profiler_type,institution,date_update
//
// Rows starting with '#' and blank rows are skipped. Only rows whose
// path begins with the DAC partition are kept; the float ID is the
// second path segment.
func Parse(r io.Reader, dac string) (*Index, error) {
	ix := &Index{Floats: make(map[string][]argo.RemoteFile)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 8 {
			continue
		}

		filePath := strings.TrimSpace(parts[0])
		segments := strings.Split(filePath, "/")
		if len(segments) < 2 || segments[0] != dac {
			continue
		}
		floatID := segments[1]

		file := argo.RemoteFile{
			Path:       filePath,
			FloatID:    floatID,
			DateUpdate: strings.TrimSpace(parts[7]),
		}
		if t, ok := argo.TypeFromFileName(file.FileName()); ok {
			file.Type = t
		}

		ix.Floats[floatID] = append(ix.Floats[floatID], file)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}

	return ix, nil
}
