package store_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain runs all tests in the store_test package and checks for
// goroutine leaks after all tests complete, catching a RunActiveExpire
// sweep left running past its context's cancellation.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
