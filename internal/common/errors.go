// Package common defines shared sentinel errors used across the sync,
// parse and upload layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Download errors. ErrTransientNetwork marks failures worth retrying
	// (timeouts, 5xx, connection resets); ErrPermanentNotFound marks
	// failures that will not succeed on retry (404, permission denied).
	ErrTransientNetwork  = errors.New("transient network error")
	ErrPermanentNotFound = errors.New("remote file not found")

	// ErrParse marks an unreadable or malformed dataset file. The float
	// owning the file is failed; other floats are unaffected.
	ErrParse = errors.New("parse error")

	// ErrManifestCorrupt is reported when a manifest file cannot be
	// decoded. Recovery is an empty manifest, never a process failure.
	ErrManifestCorrupt = errors.New("manifest corrupt")

	// ErrIndexUnavailable means the remote index itself could not be
	// fetched, so the run as a whole cannot make progress.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrNoProfiles means a float's mandatory profile file yielded no
	// usable profiles.
	ErrNoProfiles = errors.New("no profiles extracted")
)
