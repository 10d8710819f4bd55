package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "LEDGER_TEST_MODE"

// InTestMode reports whether LEDGER_TEST_MODE is set to a true value. The
// ledger and worker binaries exit before opening Postgres or Redis when it
// is, so `go test ./...` never starts them against real infrastructure.
var InTestMode = sync.OnceValue(func() bool {
	return testModeEnabled(os.Getenv(testModeEnv))
})

func testModeEnabled(raw string) bool {
	on, err := strconv.ParseBool(raw)
	return err == nil && on
}
