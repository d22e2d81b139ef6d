package cas

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileCAS implements CAS on the file system. The remote server uses it to
// keep pushed revision payloads across restarts.
type FileCAS struct {
	root string
}

// NewFileCAS creates a file-based CAS rooted at the given directory.
func NewFileCAS(root string) (*FileCAS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create CAS directory: %w", err)
	}
	return &FileCAS{root: root}, nil
}

// path fans objects out into two-character directories, e.g. ab/cdef1234...
func (f *FileCAS) path(hash Hash) string {
	hexStr := hash.String()
	return filepath.Join(f.root, hexStr[:2], hexStr[2:])
}

// Put implements CAS.Put. Writes go through a temp file and a rename.
func (f *FileCAS) Put(hash Hash, data []byte) error {
	if computed := SumB3(data); computed != hash {
		return fmt.Errorf("hash mismatch: expected %s, got %s", hash, computed)
	}

	path := f.path(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename payload: %w", err)
	}
	return nil
}

// Get implements CAS.Get and re-verifies the content hash.
func (f *FileCAS) Get(hash Hash) ([]byte, error) {
	data, err := os.ReadFile(f.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if SumB3(data) != hash {
		return nil, fmt.Errorf("corrupted payload: hash mismatch for %s", hash)
	}
	return data, nil
}

// Has implements CAS.Has.
func (f *FileCAS) Has(hash Hash) (bool, error) {
	_, err := os.Stat(f.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check payload: %w", err)
	}
	return true, nil
}
