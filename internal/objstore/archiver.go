// Package objstore copies synced raw files to S3-compatible object
// storage. Archival is best-effort: callers log failures and move on.
package objstore

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oceanatlas/argosync/internal/logging"
)

// Config holds the object storage endpoint and credentials. MinIO and
// AWS both work; BaseEndpoint is empty for AWS.
type Config struct {
	Enabled      bool
	Region       string
	BaseEndpoint string
	Bucket       string
	KeyPrefix    string
	AccessKey    string
	SecretKey    string
}

// putObjectAPI is the slice of the S3 client the archiver uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archiver struct {
	cfg    Config
	client putObjectAPI
	logger logging.Logger
}

// New builds an archiver. A disabled config yields a nil archiver,
// which every method tolerates.
func New(ctx context.Context, cfg Config, logger logging.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("object storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &Archiver{cfg: cfg, client: client, logger: logger}, nil
}

// ArchiveFile uploads one local file under prefix/remotePath. Returns
// the object key.
func (a *Archiver) ArchiveFile(ctx context.Context, localPath, remotePath string) (string, error) {
	if a == nil {
		return "", nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("archive open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(a.cfg.KeyPrefix, remotePath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("archive put %s: %w", key, err)
	}

	a.logger.Debug(ctx, "file archived", "key", key)
	return key, nil
}

// ArchiveFloat uploads every present aggregate file of one float.
// Missing local files are skipped; the first storage error stops the
// batch and is returned for logging.
func (a *Archiver) ArchiveFloat(ctx context.Context, localDir string, remotePaths []string) (int, error) {
	if a == nil {
		return 0, nil
	}

	archived := 0
	for _, rp := range remotePaths {
		local := path.Join(localDir, path.Base(rp))
		if _, err := os.Stat(local); err != nil {
			continue
		}
		if _, err := a.ArchiveFile(ctx, local, rp); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}
