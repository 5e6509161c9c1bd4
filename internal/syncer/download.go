package syncer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-retry"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/filex"
)

// downloadFile fetches one remote file into the local cache using a
// pooled connection, retrying transient failures up to the configured
// attempt budget. Permanent failures (404 and friends) stop immediately.
func (m *Manager) downloadFile(ctx context.Context, file argo.RemoteFile) (int64, error) {
	url := trimBase(m.cfg.BaseURL, m.cfg.BasePath+"/"+file.Path)
	localPath := filepath.Join(m.cfg.CacheDir, filepath.FromSlash(file.Path))

	if err := filex.EnsureDir(filepath.Dir(localPath)); err != nil {
		return 0, err
	}

	retries := uint64(0)
	if m.cfg.MaxRetries > 1 {
		retries = uint64(m.cfg.MaxRetries - 1)
	}
	backoff := retry.WithMaxRetries(retries, retry.NewConstant(m.cfg.RetryDelay))

	var size int64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := m.attemptDownload(ctx, url, localPath)
		if err != nil {
			return err
		}
		size = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

// attemptDownload performs a single streamed GET into a temp file that
// is atomically renamed on success, so a crash never leaves a truncated
// file pretending to be complete.
func (m *Manager) attemptDownload(ctx context.Context, url, localPath string) (int64, error) {
	pool := m.pools.Pool(m.cfg.BaseURL)
	client, err := pool.Get(ctx)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		pool.Put(client)
		return 0, err
	}

	resp, err := client.HTTP.Do(req)
	if err != nil {
		pool.Discard(client)
		return 0, retry.RetryableError(fmt.Errorf("%w: %v", common.ErrTransientNetwork, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		pool.Put(client)
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), filepath.Base(localPath)+".part-*")
	if err != nil {
		pool.Put(client)
		return 0, err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmpName)
		pool.Discard(client)
		if err == nil {
			err = closeErr
		}
		return 0, retry.RetryableError(fmt.Errorf("%w: %v", common.ErrTransientNetwork, err))
	}
	if n == 0 {
		os.Remove(tmpName)
		pool.Put(client)
		return 0, retry.RetryableError(fmt.Errorf("%w: empty body", common.ErrTransientNetwork))
	}

	if err := os.Rename(tmpName, localPath); err != nil {
		os.Remove(tmpName)
		pool.Put(client)
		return 0, err
	}

	pool.Put(client)
	return n, nil
}

// classifyStatus converts an HTTP status into the error taxonomy:
// nil for success, a permanent error for statuses that will not change
// on retry, a retryable transient error otherwise.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound ||
		code == http.StatusGone ||
		code == http.StatusForbidden ||
		code == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", common.ErrPermanentNotFound, code)
	default:
		return retry.RetryableError(fmt.Errorf("%w: status %d", common.ErrTransientNetwork, code))
	}
}
