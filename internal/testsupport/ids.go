package testsupport

import (
	"testing"

	"github.com/google/uuid"
)

func newID(t testing.TB) string {
	t.Helper()
	return uuid.NewString()
}
