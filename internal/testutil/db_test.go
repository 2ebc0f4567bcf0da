package testutil

import (
	"strings"
	"testing"
)

func TestSanitizeTestName(t *testing.T) {
	if got := sanitizeTestName("TestCreate/weak password"); got != "TestCreate_weak_password" {
		t.Errorf("sanitizeTestName() = %q", got)
	}

	long := "TestChangePassword_Rejected/" + strings.Repeat("x", 40)
	a := sanitizeTestName(long + "a")
	b := sanitizeTestName(long + "b")
	if len(a) != 44 || len(b) != 44 {
		t.Errorf("long names should be cut to 44 bytes, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Errorf("distinct long names collided: %q", a)
	}
}
