package diskv

import (
	"testing"

	"github.com/example/reproc/internal/adapters/store/storetest"
)

func TestEntityStore(t *testing.T) {
	storetest.TestEntityStore(t, New(t.TempDir()))
}
