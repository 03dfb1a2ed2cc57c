package core

import "testing"

func TestErrorForReplyCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"INVALID", ExitUsage},
		{"UNKNOWN_BUTTON", ExitUsage},
		{"NOT_INITIALIZED", ExitNotInitialized},
		{"NATIVE", ExitNative},
		{"INTERNAL", ExitRuntime},
		{"UNKNOWN", ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyCode(test.code, "message")
		if err.Code != test.expected {
			t.Fatalf("code %s expected %d got %d", test.code, test.expected, err.Code)
		}
	}
}
