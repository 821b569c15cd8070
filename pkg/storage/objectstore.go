package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ObjectStore persists immutable blobs on disk keyed by content hash. Blobs
// are sharded by the first two hash characters:
//
//	<base>/<hash[:2]>/<hash[2:]>
//
// Writers never expose partial content: blobs land via an atomic rename from
// a staging path into the final sharded location.
type ObjectStore struct {
	baseDir string
}

// NewObjectStore ensures the base directory exists and returns a handle.
func NewObjectStore(baseDir string) (*ObjectStore, error) {
	if baseDir == "" {
		baseDir = "./objects"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create objects directory: %w", err)
	}
	return &ObjectStore{baseDir: baseDir}, nil
}

// Put moves the staged file into the store under the given hash. It is
// idempotent: when the blob already exists the staged file is discarded,
// since content addressing guarantees byte identity.
func (s *ObjectStore) Put(stagingPath, hash string) (string, error) {
	if !ValidHash(hash) {
		return "", fmt.Errorf("put object: malformed hash %q", hash)
	}
	target := s.path(hash)
	if _, err := os.Stat(target); err == nil {
		if err := os.Remove(stagingPath); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("discard staged duplicate: %w", err)
		}
		return target, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare object shard: %w", err)
	}
	if err := os.Rename(stagingPath, target); err != nil {
		// Rename fails across filesystems; fall back to a copy into a
		// temp file in the target shard followed by a rename.
		if copyErr := s.copyInto(stagingPath, target); copyErr != nil {
			return "", fmt.Errorf("store object %s: %w", hash, copyErr)
		}
		_ = os.Remove(stagingPath)
	}
	return target, nil
}

// Exists reports whether a blob for the hash is present.
func (s *ObjectStore) Exists(hash string) bool {
	if !ValidHash(hash) {
		return false
	}
	_, err := os.Stat(s.path(hash))
	return err == nil
}

// Open returns a read-only handle for the blob.
func (s *ObjectStore) Open(hash string) (*os.File, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("open object: malformed hash %q", hash)
	}
	file, err := os.Open(s.path(hash))
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", hash, err)
	}
	return file, nil
}

// Delete removes the blob if present.
func (s *ObjectStore) Delete(hash string) error {
	if !ValidHash(hash) {
		return fmt.Errorf("delete object: malformed hash %q", hash)
	}
	if err := os.Remove(s.path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", hash, err)
	}
	return nil
}

// Path exposes the on-disk location for a hash (useful for debugging).
func (s *ObjectStore) Path(hash string) string {
	return s.path(hash)
}

// ListHashes walks the store and returns every stored hash.
func (s *ObjectStore) ListHashes() ([]string, error) {
	var hashes []string
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		shard := filepath.Base(filepath.Dir(path))
		hash := shard + d.Name()
		if ValidHash(hash) {
			hashes = append(hashes, hash)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return hashes, nil
}

func (s *ObjectStore) path(hash string) string {
	return filepath.Join(s.baseDir, hash[:2], hash[2:])
}

func (s *ObjectStore) copyInto(src, target string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(target), ".ingest-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return err
	}
	success = true
	return nil
}
