package recording

import (
	"context"
	"crush-chat/errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type State int

const (
	Unarmed State = iota
	Armed
	Capturing
	Finalizing
	Completed
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Unarmed:
		return "Unarmed"
	case Armed:
		return "Armed"
	case Capturing:
		return "Capturing"
	case Finalizing:
		return "Finalizing"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the session can no longer change.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

type Result struct {
	URI       string
	StartedAt time.Time
	Duration  time.Duration
}

// Session is one audio-capture attempt.
// Backend calls run without the lock held so that State and Cancel stay
// responsive while the platform answers; at most one call is in flight.
type Session struct {
	mu        sync.Mutex
	log       *slog.Logger
	backend   Backend
	now       func() time.Time
	state     State
	inflight  bool
	startedAt time.Time
	stoppedAt time.Time
	resultURI string
	failure   error
}

func NewSession(log *slog.Logger, backend Backend) *Session {
	return &Session{
		log:     log,
		backend: backend,
		now:     time.Now,
		state:   Unarmed,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capturing reports whether the session sits between Start and the
// resolution of Stop.
func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Capturing || s.state == Finalizing || (s.state == Armed && s.inflight)
}

// Result is only available once the session Completed.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Completed {
		return Result{}, false
	}
	return Result{
		URI:       s.resultURI,
		StartedAt: s.startedAt,
		Duration:  s.stoppedAt.Sub(s.startedAt),
	}, true
}

// Failure is the reason of a Failed session.
func (s *Session) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Arm asks for the microphone permission and configures the recorder.
// Arming an Armed session is a no-op.
func (s *Session) Arm(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Armed && !s.inflight {
		s.mu.Unlock()
		return nil
	}
	if err := s.begin(Unarmed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.permit(ctx)
	prepared := false
	if err == nil {
		if perr := s.backend.Prepare(ctx); perr != nil {
			err = fmt.Errorf("%w: %v", errors.ErrDeviceUnavailable, perr)
		}
		prepared = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	if s.state == Cancelled {
		if prepared {
			s.release()
		}
		return fmt.Errorf("%w: session cancelled while arming", errors.ErrInvalidState)
	}
	if err != nil {
		if prepared {
			s.release()
		}
		return err
	}
	s.state = Armed
	return nil
}

func (s *Session) permit(ctx context.Context) error {
	granted, err := s.backend.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("%w: permission request: %v", errors.ErrDeviceUnavailable, err)
	}
	if !granted {
		return fmt.Errorf("%w: microphone access declined", errors.ErrPermissionDenied)
	}
	return nil
}

// Start begins the capture. Only valid from Armed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.begin(Armed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.backend.Start(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	if s.state == Cancelled {
		s.release()
		return fmt.Errorf("%w: session cancelled while starting", errors.ErrInvalidState)
	}
	if err != nil {
		s.fail(err)
		s.release()
		return s.failure
	}
	s.state = Capturing
	s.startedAt = s.now()
	return nil
}

// Stop ends the capture and resolves the session to Completed or Failed.
// The returned error is the failure reason when the session Failed.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if err := s.begin(Capturing); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = Finalizing
	s.mu.Unlock()

	uri, err := s.backend.Stop(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	s.stoppedAt = s.now()
	s.release()
	switch {
	case err != nil:
		s.fail(err)
		return s.failure
	case strings.TrimSpace(uri) == "":
		s.fail(fmt.Errorf("recorder returned no resource locator"))
		return s.failure
	}
	s.state = Completed
	s.resultURI = uri
	return nil
}

// Cancel releases the recorder without producing anything.
// Valid from Armed or Capturing, and while an Arm is still pending.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == Armed, s.state == Capturing:
	case s.state == Unarmed && s.inflight:
	default:
		return fmt.Errorf("%w: cannot cancel a %s session", errors.ErrInvalidState, s.state)
	}
	// A pending backend call releases on its way out.
	if !s.inflight {
		s.release()
	}
	s.state = Cancelled
	return nil
}

// begin must be called with the lock held.
func (s *Session) begin(expected State) error {
	if s.inflight {
		return fmt.Errorf("%w: recorder call pending", errors.ErrBusy)
	}
	if s.state != expected {
		return fmt.Errorf("%w: expected %s session, got %s", errors.ErrInvalidState, expected, s.state)
	}
	s.inflight = true
	return nil
}

func (s *Session) fail(reason error) {
	s.state = Failed
	s.failure = fmt.Errorf("%w: %v", errors.ErrRecordingFailed, reason)
}

func (s *Session) release() {
	if err := s.backend.Release(); err != nil {
		s.log.Warn("Unable to release recorder", "error", err)
	}
}
