package testutil

import (
	"os"
	"testing"
)

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireEnv returns the value of an environment variable naming an external
// service, skipping the test when it is unset. Integration tests against
// PostgreSQL, MySQL, MongoDB or Kafka are gated this way.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	IntegrationTest(t)
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}
