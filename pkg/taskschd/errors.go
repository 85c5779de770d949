package taskschd

import (
	"errors"
	"fmt"
)

// HRESULT is a native COM status code. Negative values are failures.
//
// https://docs.microsoft.com/en-us/windows/win32/taskschd/task-scheduler-error-and-success-constants
type HRESULT int32

const (
	S_OK    HRESULT = 0
	S_FALSE HRESULT = 1

	E_NOTIMPL      HRESULT = 0x80004001 - 1<<32
	E_POINTER      HRESULT = 0x80004003 - 1<<32
	E_FAIL         HRESULT = 0x80004005 - 1<<32
	E_ACCESSDENIED HRESULT = 0x80070005 - 1<<32
	E_INVALIDARG   HRESULT = 0x80070057 - 1<<32

	// ERROR_FILE_NOT_FOUND as an HRESULT; DeleteTask returns it for a missing task.
	E_FILE_NOT_FOUND HRESULT = 0x80070002 - 1<<32

	RPC_E_CHANGED_MODE HRESULT = 0x80010106 - 1<<32
	RPC_E_TOO_LATE     HRESULT = 0x80010119 - 1<<32
)

func (hr HRESULT) Failed() bool    { return hr < 0 }
func (hr HRESULT) Succeeded() bool { return hr >= 0 }

func (hr HRESULT) String() string { return fmt.Sprintf("0x%08X", uint32(hr)) }

// WinError is the single error type returned by the native call chain.
// Code is the raw status of the failing call; Message names the step and is
// advisory only.
type WinError struct {
	Code    HRESULT
	Message string
}

func (e *WinError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("WinError 0x%X : %s", uint32(e.Code), e.Message)
	}
	return fmt.Sprintf("WinError %X", uint32(e.Code))
}

// check maps a failed status to *WinError.
func check(hr HRESULT, message string) error {
	if hr.Succeeded() {
		return nil
	}
	return &WinError{Code: hr, Message: message}
}

// Code extracts the status code of a *WinError in err's chain.
func Code(err error) (HRESULT, bool) {
	var we *WinError
	if errors.As(err, &we) {
		return we.Code, true
	}
	return S_OK, false
}

// IsUnsupported reports whether err comes from a platform without the
// Task Scheduler service.
func IsUnsupported(err error) bool {
	hr, ok := Code(err)
	return ok && hr == E_NOTIMPL
}

// IsNotFound reports whether err is the service's "task does not exist" status.
func IsNotFound(err error) bool {
	hr, ok := Code(err)
	return ok && hr == E_FILE_NOT_FOUND
}
