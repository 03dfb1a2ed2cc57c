package core

import (
	"fmt"

	"github.com/soren-m/now_playing/pkg/np"
)

// Exit codes of the np CLI.
const (
	ExitOK             = 0
	ExitRuntime        = 1
	ExitUsage          = 2
	ExitNotInitialized = 3
	ExitNotFound       = 4
	ExitNative         = 5
)

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForReplyCode maps protocol error codes to CLI exit codes.
func ErrorForReplyCode(code string, message string) *CLIError {
	switch code {
	case np.ReplyCodeInvalid, np.ReplyCodeUnknownButton:
		return &CLIError{Code: ExitUsage, Msg: message}
	case np.ReplyCodeNotInitialized:
		return &CLIError{Code: ExitNotInitialized, Msg: message}
	case np.ReplyCodeNative:
		return &CLIError{Code: ExitNative, Msg: message}
	default:
		return &CLIError{Code: ExitRuntime, Msg: message}
	}
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if cliErr, ok := err.(*CLIError); ok {
		return cliErr.Code
	}
	return ExitRuntime
}
