// Package fs stores published documents on the local filesystem.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"elwinator/internal/blob/core"
)

// DefaultRoot is used when New receives an empty root.
const DefaultRoot = "./published"

const metaSuffix = ".meta"

// Store implements core.Store on a local directory. Keys map to relative file
// paths under the root; a sidecar (file + ".meta") keeps content type, user
// metadata and a sha256 ETag.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a filesystem store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Root returns the directory the store writes under.
func (s *Store) Root() string { return s.root }

// Driver returns core.DriverFilesystem.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) pathFor(key string) (clean, dataPath, metaPath string, err error) {
	clean, err = core.CleanKey(key)
	if err != nil {
		return "", "", "", err
	}
	dataPath = filepath.Join(s.root, filepath.FromSlash(clean))
	return clean, dataPath, dataPath + metaSuffix, nil
}

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (m metaFile) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     core.CloneMetadata(m.Metadata),
		LastModified: m.UpdatedAt,
	}
}

// Put writes the object through a temp file and renames it into place, replacing
// any previous version. CreatedAt survives replacement.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	clean, dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return core.Info{}, fmt.Errorf("write blob %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return core.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Info{}, err
	}

	now := s.now()
	mf := metaFile{
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if prev, err := readMeta(metaPath); err == nil {
		mf.CreatedAt = prev.CreatedAt
	}
	if err := writeMeta(metaPath, mf); err != nil {
		return core.Info{}, err
	}
	return mf.info(clean), nil
}

// Get opens the object. The caller closes the reader.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	_, dataPath, _, _ := s.pathFor(key)
	file, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, info.Key)
	}
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, file, nil
}

// Head reads the sidecar only.
func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	clean, _, metaPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	mf, err := readMeta(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, clean)
	}
	if err != nil {
		return core.Info{}, err
	}
	return mf.info(clean), nil
}

// Delete removes the object and its sidecar, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List walks the root for sidecars whose key starts with prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		mf, err := readMeta(p)
		if err != nil {
			return err
		}
		infos = append(infos, mf.info(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func writeMeta(path string, mf metaFile) error {
	b, err := jsonMarshal(mf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readMeta(path string) (metaFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return metaFile{}, err
	}
	var mf metaFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return metaFile{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return mf, nil
}

var jsonMarshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
