package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertCode fails the test when err does not carry code. Errors that are not
// coded only match DefaultCode.
func AssertCode(t *testing.T, err error, code int) bool {
	t.Helper()
	if err == nil {
		return assert.Fail(t, "expected an error with code", "code %d", code)
	}
	return assert.Equal(t, code, CodeOf(err), "code should be equal for %v", err)
}
