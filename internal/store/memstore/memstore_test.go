package memstore

import (
	"testing"

	"objrepo/internal/store"
	"objrepo/internal/store/storetest"
)

func TestMemstoreConformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.DataStore {
		return New()
	})
}
