// Package blob re-exports the artifact store abstractions and selects a backend
// from configuration.
package blob

import (
	"elwinator/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrInvalidKey is returned for keys that are empty or escape the store root.
	ErrInvalidKey = core.ErrInvalidKey
)

// ParseDriver maps a configuration value to a Driver.
func ParseDriver(s string) (Driver, error) { return core.ParseDriver(s) }
