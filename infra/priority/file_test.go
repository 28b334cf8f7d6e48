package priority

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corepriority "github.com/kilianp07/gridshed/core/priority"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "user_priorities.json")
	s := NewFileStore(path)

	_, err := s.Read()
	require.ErrorIs(t, err, corepriority.ErrNotFound)

	doc := corepriority.Builtin()
	doc.NonCritical[0].Priority = 9
	require.NoError(t, s.Write(doc))

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFileStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default_priorities.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"critical": [`), 0o644))
	_, err := NewReadOnlyFileStore(path).Read()
	require.Error(t, err)
	assert.NotErrorIs(t, err, corepriority.ErrNotFound)
}

func TestReadOnlyFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default_priorities.json")
	err := NewReadOnlyFileStore(path).Write(corepriority.Builtin())
	assert.ErrorIs(t, err, corepriority.ErrReadOnly)
}

func TestRegistryWithFileStores(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "default_priorities.json")
	userPath := filepath.Join(dir, "user_priorities.json")
	require.NoError(t, NewFileStore(defPath).Write(corepriority.Builtin()))

	reg := corepriority.NewRegistry(NewReadOnlyFileStore(defPath), NewFileStore(userPath), nil)
	require.NoError(t, reg.Load())
	_, err := os.Stat(userPath)
	require.NoError(t, err, "override is created on first load")

	require.NoError(t, reg.UpdatePriority(corepriority.NonCritical, "auxiliary", 3))

	reloaded := corepriority.NewRegistry(NewReadOnlyFileStore(defPath), NewFileStore(userPath), nil)
	require.NoError(t, reloaded.Load())
	res, ok := reloaded.Priorities().Resolve("auxiliary")
	require.True(t, ok)
	assert.Equal(t, 3, res.Entry.Priority)
}
