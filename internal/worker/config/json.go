package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/oceanatlas/argosync/internal/flagx"
	"github.com/oceanatlas/argosync/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields,
// which allows parsing both string values such as "5s" and integer
// nanoseconds. Absent fields keep their defaults.
type JsonConfig struct {
	ArchiveBaseURL  string `json:"archive_base_url"`
	ArchiveBasePath string `json:"archive_base_path"`
	DAC             string `json:"dac"`
	CacheDir        string `json:"cache_dir"`
	DatabaseDSN     string `json:"database_dsn"`
	Targets         string `json:"targets"`

	MaxConcurrentFloats int            `json:"max_concurrent_floats"`
	PerFloatConnections int            `json:"per_float_connections"`
	MaxRetries          int            `json:"max_retries"`
	RetryDelay          timex.Duration `json:"retry_delay"`
	CheckpointEvery     int            `json:"checkpoint_every"`

	PoolSize        int            `json:"pool_size"`
	PoolIdleTimeout timex.Duration `json:"pool_idle_timeout"`
	ProbeTimeout    timex.Duration `json:"probe_timeout"`
	RequestTimeout  timex.Duration `json:"request_timeout"`

	SkipDownload bool           `json:"skip_download"`
	SyncOnly     bool           `json:"sync_only"`
	Interval     timex.Duration `json:"interval"`

	ArchiveRaw     bool   `json:"archive_raw"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3Bucket       string `json:"s3_bucket"`
	S3KeyPrefix    string `json:"s3_key_prefix"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
}

// parseJson overlays configuration values from a JSON file located via
// the -c/-config flags. If no flag is given nothing is loaded; an
// unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.ArchiveBaseURL, c.ArchiveBaseURL)
	setString(&config.ArchiveBasePath, c.ArchiveBasePath)
	setString(&config.DAC, c.DAC)
	setString(&config.CacheDir, c.CacheDir)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.Targets != "" {
		config.Targets = SplitTargets(c.Targets)
	}

	setInt(&config.MaxConcurrentFloats, c.MaxConcurrentFloats)
	setInt(&config.PerFloatConnections, c.PerFloatConnections)
	setInt(&config.MaxRetries, c.MaxRetries)
	setDuration(&config.RetryDelay, c.RetryDelay)
	setInt(&config.CheckpointEvery, c.CheckpointEvery)

	setInt(&config.PoolSize, c.PoolSize)
	setDuration(&config.PoolIdleTimeout, c.PoolIdleTimeout)
	setDuration(&config.ProbeTimeout, c.ProbeTimeout)
	setDuration(&config.RequestTimeout, c.RequestTimeout)

	config.SkipDownload = c.SkipDownload
	config.SyncOnly = c.SyncOnly
	setDuration(&config.Interval, c.Interval)

	config.ArchiveRaw = c.ArchiveRaw
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3KeyPrefix, c.S3KeyPrefix)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}

// SplitTargets parses a comma-separated float ID list.
func SplitTargets(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
