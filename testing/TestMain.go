// Package testing puts binaries into test mode so their main functions return
// before touching Redis, PostgreSQL or the network.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/app"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("FBR_CONSOLE_TEST_MODE", "1")
		if os.Getenv("CATALOG_STORE") == "" {
			_ = os.Setenv("CATALOG_STORE", app.StoreMemory)
		}
		app.RefreshTestMode()
	})
}

func init() {
	ensureTestMode()
}

// TestMain runs m in test mode.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
