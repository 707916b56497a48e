package blob

import (
	"context"

	infraS3 "elwinator/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// S3ConfigFromEnv reads the ELWINATOR_BLOB_S3_* variables.
func S3ConfigFromEnv() S3Config { return infraS3.ConfigFromEnv() }

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests exposes the in-memory S3 transport mock for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
