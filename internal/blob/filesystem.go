package blob

import (
	"elwinator/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed Store rooted at the provided path.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}
