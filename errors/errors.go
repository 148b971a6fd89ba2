package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInvalidState      = fmt.Errorf("invalid state")
	ErrPermissionDenied  = fmt.Errorf("permission denied")
	ErrDeviceUnavailable = fmt.Errorf("device unavailable")
	ErrBusy              = fmt.Errorf("busy")
	ErrNotFound          = fmt.Errorf("not found")
	ErrPersistenceFailed = fmt.Errorf("persistence failed")
	ErrUnauthenticated   = fmt.Errorf("unauthenticated")
	ErrRecordingFailed   = fmt.Errorf("recording failed")
)

// Kind classifies an error for the UI layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindInvalidState
	KindPermissionDenied
	KindDeviceUnavailable
	KindBusy
	KindNotFound
	KindPersistenceFailed
	KindUnauthenticated
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrInvalidState, KindInvalidState},
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrDeviceUnavailable, KindDeviceUnavailable},
	{ErrBusy, KindBusy},
	{ErrNotFound, KindNotFound},
	{ErrPersistenceFailed, KindPersistenceFailed},
	{ErrUnauthenticated, KindUnauthenticated},
	// A failed capture aborts the attempt the same way a broken device does.
	{ErrRecordingFailed, KindDeviceUnavailable},
}

// KindOf returns the first known kind found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Recoverable reports whether the caller should simply re-prompt the user.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindInvalidInput, KindInvalidState, KindBusy:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidState:
		return "InvalidState"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindDeviceUnavailable:
		return "DeviceUnavailable"
	case KindBusy:
		return "Busy"
	case KindNotFound:
		return "NotFound"
	case KindPersistenceFailed:
		return "PersistenceFailed"
	case KindUnauthenticated:
		return "Unauthenticated"
	}
	return "Unknown"
}
