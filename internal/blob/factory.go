package blob

import (
	"context"
	"fmt"
	"os"
)

// Options selects and configures a backend.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// OptionsFromEnv reads the backend selection from the environment:
//
//	ELWINATOR_BLOB_DRIVER: fs|s3|memory (default fs)
//	ELWINATOR_BLOB_FS_ROOT: directory root when driver=fs (default ./published)
//	ELWINATOR_BLOB_S3_*: see internal/infra/blob/s3
func OptionsFromEnv() (Options, error) {
	driver, err := ParseDriver(os.Getenv("ELWINATOR_BLOB_DRIVER"))
	if err != nil {
		return Options{}, err
	}
	return Options{
		Driver: driver,
		FSRoot: os.Getenv("ELWINATOR_BLOB_FS_ROOT"),
		S3:     S3ConfigFromEnv(),
	}, nil
}

// Open builds the Store named by opts.Driver. An empty driver selects the filesystem.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}

// OpenFromEnv is Open with OptionsFromEnv.
func OpenFromEnv(ctx context.Context) (Store, error) {
	opts, err := OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	return Open(ctx, opts)
}
