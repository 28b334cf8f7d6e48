package priority

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	corepriority "github.com/kilianp07/gridshed/core/priority"
	"github.com/kilianp07/gridshed/infra/logger"
)

// FileStore persists a priority document as an indented JSON file. Writes go
// to a temporary file in the same directory and are renamed into place so a
// failed write never leaves a truncated document behind.
type FileStore struct {
	path     string
	readOnly bool
}

// NewFileStore returns a writable store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewReadOnlyFileStore returns a store that rejects writes, used for the
// default configuration.
func NewReadOnlyFileStore(path string) *FileStore {
	return &FileStore{path: path, readOnly: true}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Read decodes the document. A missing file yields corepriority.ErrNotFound.
func (s *FileStore) Read() (corepriority.Document, error) {
	var doc corepriority.Document
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, fmt.Errorf("%s: %w", s.path, corepriority.ErrNotFound)
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

// Write replaces the file content with doc.
func (s *FileStore) Write(doc corepriority.Document) error {
	if s.readOnly {
		return fmt.Errorf("%s: %w", s.path, corepriority.ErrReadOnly)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// NewRegistry returns a registry reading its defaults from defaultPath and
// persisting operator changes to overridePath.
func NewRegistry(defaultPath, overridePath string, log logger.Logger) *corepriority.Registry {
	return corepriority.NewRegistry(NewReadOnlyFileStore(defaultPath), NewFileStore(overridePath), log)
}
