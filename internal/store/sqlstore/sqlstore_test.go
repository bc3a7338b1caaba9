package sqlstore

import (
	"path/filepath"
	"testing"

	"objrepo/internal/store"
	"objrepo/internal/store/storetest"
)

func TestSqlstoreConformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.DataStore {
		s, err := Open(filepath.Join(t.TempDir(), "store.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
