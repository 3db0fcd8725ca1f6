package archive

import (
	"context"
	"fmt"
)

const (
	DriverNone  = "none"
	DriverLocal = "local"
	DriverS3    = "s3"
)

type Config struct {
	Driver   string
	LocalDir string
	S3Region string
	S3Bucket string
	S3Prefix string
}

// FromConfig builds the configured driver. DriverNone yields a nil Archive.
func FromConfig(ctx context.Context, cfg Config) (Archive, error) {
	switch cfg.Driver {
	case DriverNone, "":
		return nil, nil

	case DriverLocal:
		dir := cfg.LocalDir
		if dir == "" {
			dir = "./storage/archive"
		}
		return NewLocal(dir), nil

	case DriverS3:
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3 archive config missing: S3_REGION, S3_BUCKET required")
		}
		s, err := NewS3(ctx, S3Config{Region: cfg.S3Region, Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown ARCHIVE_DRIVER: %s", cfg.Driver)
	}
}
