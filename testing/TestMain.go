// Package testing puts test binaries into ledger test mode. Import it for
// its side effect.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// ledgerOverrides are settings a developer shell may export that would change
// the configuration defaults tests assert on.
var ledgerOverrides = []string{"APP_ENV", "LEDGER_STORE", "INTEGRITY_CRON"}

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("LEDGER_TEST_MODE", "1")
		for _, key := range ledgerOverrides {
			_ = os.Unsetenv(key)
		}
		if os.Getenv("LOG_FORMAT") == "" {
			_ = os.Setenv("LOG_FORMAT", "text")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
