//go:generate go run go.uber.org/mock/mockgen -source=backend.go -destination=../mocks/mock_recording_backend.go -package=mocks
package recording

import "context"

// Backend is the platform audio subsystem: permission dialog, recorder
// configuration and the capture device itself. Every call but Release may
// suspend while the platform answers.
type Backend interface {
	// RequestPermission returns false when the user declines.
	RequestPermission(ctx context.Context) (bool, error)
	Prepare(ctx context.Context) error
	Start(ctx context.Context) error
	// Stop ends the capture and returns the resource locator of the recording.
	Stop(ctx context.Context) (string, error)
	// Release frees the microphone and recorder resources.
	Release() error
}
