package blob

import (
	memorystore "elwinator/internal/infra/blob/memory"
)

// NewMemory returns an in-memory Store for tests and dry runs.
func NewMemory() Store { return memorystore.New() }
