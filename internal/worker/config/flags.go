package config

import (
	"flag"
	"os"
	"time"

	"github.com/oceanatlas/argosync/internal/flagx"
)

// parseFlags populates selected worker Config fields from command-line
// flags.
//
// Supported flags (short forms):
//
//	-a string   archive base URL
//	-n string   DAC partition name (e.g. "incois")
//	-k string   local cache directory
//	-d string   PostgreSQL DSN
//	-f string   comma-separated float IDs to process
//	-w int      max concurrent floats
//	-r int      download attempts per file
//	-i int      re-run interval, seconds (0 = run once)
//	-s          skip download, ingest from local cache
//	-y          sync only, download without parsing or uploading
//
// The function first filters os.Args to only the flags it recognizes
// using flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-n", "-k", "-d", "-f", "-w", "-r", "-i", "-s", "-y"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ArchiveBaseURL, "a", config.ArchiveBaseURL, "archive base URL")
	fs.StringVar(&config.DAC, "n", config.DAC, "DAC partition to sync")
	fs.StringVar(&config.CacheDir, "k", config.CacheDir, "local cache directory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	targets := fs.String("f", "", "comma-separated float IDs")
	fs.IntVar(&config.MaxConcurrentFloats, "w", config.MaxConcurrentFloats, "max concurrent floats")
	fs.IntVar(&config.MaxRetries, "r", config.MaxRetries, "download attempts per file")
	interval := fs.Int("i", int(config.Interval.Seconds()), "re-run interval in seconds (0 = run once)")
	fs.BoolVar(&config.SkipDownload, "s", config.SkipDownload, "skip download, ingest from local cache")
	fs.BoolVar(&config.SyncOnly, "y", config.SyncOnly, "sync only, download without parsing or uploading")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *targets != "" {
		config.Targets = SplitTargets(*targets)
	}
	config.Interval = time.Duration(*interval) * time.Second
}
