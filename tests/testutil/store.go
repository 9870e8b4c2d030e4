package testutil

import (
	"testing"

	"github.com/nhle/mailnotify/internal/store"
)

// NewTestStore opens an in-memory mail store for tests that only need
// dedup and delivery bookkeeping within a single process.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	return NewTestStoreAt(t, ":memory:")
}

// NewTestStoreAt opens a mail store at path with all migrations
// applied and closes it when the test completes. Pass a file under
// t.TempDir() to cover restart scenarios: reopening the same path must
// find the committed rows and skip already-applied migrations.
func NewTestStoreAt(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store at %s: %v", path, err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
