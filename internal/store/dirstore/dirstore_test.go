package dirstore

import (
	"testing"

	"objrepo/internal/logging"
	"objrepo/internal/store"
	"objrepo/internal/store/storetest"
)

func TestDirstoreConformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.DataStore {
		s, err := Open(t.TempDir(), logging.Discard())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	})
}
