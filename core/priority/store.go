package priority

import "sync"

// Store persists a priority document. Implementations return ErrNotFound from
// Read when nothing has been stored yet.
type Store interface {
	Read() (Document, error)
	Write(Document) error
}

// MemoryStore keeps the document in memory. It is used in tests and when no
// override file is configured.
type MemoryStore struct {
	mu       sync.Mutex
	doc      *Document
	WriteErr error
	ReadErr  error
	Writes   int
}

// NewMemoryStore returns a store holding doc, or an empty store when doc is nil.
func NewMemoryStore(doc *Document) *MemoryStore {
	s := &MemoryStore{}
	if doc != nil {
		cp := doc.Clone()
		s.doc = &cp
	}
	return s
}

func (s *MemoryStore) Read() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return Document{}, s.ReadErr
	}
	if s.doc == nil {
		return Document{}, ErrNotFound
	}
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Write(d Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if s.WriteErr != nil {
		return s.WriteErr
	}
	cp := d.Clone()
	s.doc = &cp
	return nil
}

// SetWriteErr configures the error returned by subsequent writes.
func (s *MemoryStore) SetWriteErr(err error) {
	s.mu.Lock()
	s.WriteErr = err
	s.mu.Unlock()
}
