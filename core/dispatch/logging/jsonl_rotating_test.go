package logging

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kilianp07/gridshed/core/model"
)

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/log.jsonl"
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()

	// roughly 30 KiB per record so that 1 MB is crossed quickly
	draws := make(map[string]float64, 1000)
	for i := 0; i < 1000; i++ {
		draws[fmt.Sprintf("MCB_%04d", i)] = 1
	}
	rec := record("r", 0, model.SourceSolar, draws)
	for i := 0; i < 80; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	files, _ := filepath.Glob(dir + "/log*.jsonl")
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
	out, err := store.Query(context.Background(), LogQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected records across files")
	}
}
