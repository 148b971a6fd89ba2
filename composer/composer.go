// Package composer implements the input area of a conversation screen.
//
// A Composer is driven by UI events from a single screen. Its only
// long-running operations are the recorder calls made by PressMic and
// ReleaseMic; while a capture runs (between Start and the resolution of
// Stop) every other request is rejected with errors.ErrBusy.
package composer

import (
	"context"
	"crush-chat/attachment"
	"crush-chat/domain"
	"crush-chat/errors"
	"crush-chat/observability"
	"crush-chat/recording"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// MessageWriter is the single write path for new messages.
type MessageWriter interface {
	Append(conversationID string, message domain.Message) (domain.Message, error)
}

type Ingestor interface {
	IngestFile(result attachment.PickerResult) (domain.Media, error)
	IngestRecording(session attachment.CompletedRecording) (domain.Media, error)
}

type Composer struct {
	mu             sync.Mutex
	log            *slog.Logger
	conversationID string
	store          MessageWriter
	ingestor       Ingestor
	newBackend     func() recording.Backend
	monitor        *observability.MonitoringManager
	now            func() time.Time
	state          State
}

func New(log *slog.Logger, conversationID string, store MessageWriter, ingestor Ingestor,
	newBackend func() recording.Backend, monitor *observability.MonitoringManager) *Composer {
	return &Composer{
		log:            log.With("conversation_id", conversationID),
		conversationID: conversationID,
		store:          store,
		ingestor:       ingestor,
		newBackend:     newBackend,
		monitor:        monitor,
		now:            func() time.Time { return time.Now().UTC() },
		state:          Idle{},
	}
}

func (c *Composer) ConversationID() string {
	return c.conversationID
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Type replaces the text buffer with what the user typed.
// Clearing the text brings the composer back to Idle.
func (c *Composer) Type(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.(type) {
	case Idle, TypingText:
		c.state = typed(text)
		return nil
	}
	return c.reject("type")
}

func (c *Composer) OpenEmojiPicker() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch st := c.state.(type) {
	case Idle:
		c.state = EmojiPicking{}
		return nil
	case TypingText:
		c.state = EmojiPicking{Buffer: st.Buffer}
		return nil
	}
	return c.reject("open emoji picker")
}

// ChooseEmoji appends the emoji and closes the picker.
func (c *Composer) ChooseEmoji(emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state.(EmojiPicking)
	if !ok {
		return c.reject("choose emoji")
	}
	if emoji == "" {
		return fmt.Errorf("%w: empty emoji", errors.ErrInvalidInput)
	}
	c.state = TypingText{Buffer: st.Buffer + emoji}
	return nil
}

func (c *Composer) DismissEmojiPicker() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state.(EmojiPicking)
	if !ok {
		return c.reject("dismiss emoji picker")
	}
	c.state = typed(st.Buffer)
	return nil
}

// Send emits the text buffer as a message and returns to Idle.
// A blank buffer is silently ignored: no message, no error, state unchanged.
func (c *Composer) Send() (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buffer string
	switch st := c.state.(type) {
	case Idle:
		return nil, nil
	case TypingText:
		buffer = st.Buffer
	default:
		return nil, c.reject("send")
	}
	if strings.TrimSpace(buffer) == "" {
		return nil, nil
	}

	message, err := c.store.Append(c.conversationID, domain.NewTextMessage(domain.SenderSelf, buffer, c.now()))
	if err != nil {
		// The draft is kept so the user can retry.
		return nil, err
	}
	c.state = Idle{}
	c.monitor.MessageSent(c.conversationID, string(domain.KindText))
	return &message, nil
}

// Attach sends a picked file without touching the text being composed.
func (c *Composer) Attach(result attachment.PickerResult) (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy() {
		return nil, c.reject("attach")
	}
	media, err := c.ingestor.IngestFile(result)
	if err != nil {
		c.monitor.AttachmentRejected(c.conversationID)
		return nil, err
	}
	message, err := c.store.Append(c.conversationID, domain.NewFileMessage(domain.SenderSelf, media, c.now()))
	if err != nil {
		return nil, err
	}
	c.monitor.MessageSent(c.conversationID, string(domain.KindFile))
	return &message, nil
}

// PressMic enters Recording with a fresh session, arms it and starts the
// capture. Only possible from Idle: the mic is not offered while text is buffered.
// Any failure returns the composer to Idle.
func (c *Composer) PressMic(ctx context.Context) error {
	c.mu.Lock()
	if _, ok := c.state.(Idle); !ok {
		defer c.mu.Unlock()
		return c.reject("start recording")
	}
	session := recording.NewSession(c.log, c.newBackend())
	c.state = Recording{session: session}
	c.mu.Unlock()

	if err := session.Arm(ctx); err != nil {
		c.abort(session, err)
		return err
	}
	if !c.owns(session) {
		// The screen went away while the permission dialog was open.
		_ = session.Cancel()
		return fmt.Errorf("%w: recording abandoned", errors.ErrInvalidState)
	}
	if err := session.Start(ctx); err != nil {
		c.abort(session, err)
		return err
	}
	return nil
}

// ReleaseMic stops the capture. A completed recording is sent as one audio
// message; a failed or cancelled one produces nothing and is not an error.
func (c *Composer) ReleaseMic(ctx context.Context) (*domain.Message, error) {
	c.mu.Lock()
	st, ok := c.state.(Recording)
	if !ok {
		defer c.mu.Unlock()
		return nil, c.reject("stop recording")
	}
	session := st.session
	switch session.State() {
	case recording.Capturing:
	case recording.Finalizing:
		defer c.mu.Unlock()
		return nil, c.reject("stop recording")
	default:
		// Released before the capture started.
		c.cancel(session)
		c.mu.Unlock()
		return nil, nil
	}
	c.mu.Unlock()

	stopErr := session.Stop(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ownsLocked(session) {
		c.log.Info("Recording finished after the composer moved on, discarded")
		return nil, nil
	}
	c.state = Idle{}
	if stopErr != nil {
		c.log.Warn("Recording failed", "reason", stopErr)
		c.monitor.Recording(c.conversationID, observability.RecordingFailed)
		return nil, nil
	}

	media, err := c.ingestor.IngestRecording(session)
	if err != nil {
		return nil, err
	}
	message, err := c.store.Append(c.conversationID, domain.NewAudioMessage(domain.SenderSelf, media, c.now()))
	if err != nil {
		return nil, err
	}
	c.monitor.Recording(c.conversationID, observability.RecordingCompleted)
	c.monitor.MessageSent(c.conversationID, string(domain.KindAudio))
	return &message, nil
}

// CancelRecording drops the current recording, e.g. when the user slides off the mic.
func (c *Composer) CancelRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state.(Recording)
	if !ok || st.session.State() == recording.Finalizing {
		return c.reject("cancel recording")
	}
	c.cancel(st.session)
	return nil
}

// Blur is called when the screen loses focus. An active recording is
// cancelled before teardown so that no microphone stays armed; a draft is kept.
func (c *Composer) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch st := c.state.(type) {
	case Recording:
		if st.session.State() == recording.Finalizing {
			// The capture already stopped; ReleaseMic discards its result.
			c.state = Idle{}
			c.monitor.Recording(c.conversationID, observability.RecordingCancelled)
			return
		}
		c.cancel(st.session)
	case EmojiPicking:
		c.state = typed(st.Buffer)
	}
}

// cancel must be called with the lock held and the composer in Recording.
func (c *Composer) cancel(session *recording.Session) {
	if err := session.Cancel(); err != nil && !session.State().Terminal() {
		c.log.Warn("Unable to cancel recording", "state", session.State(), "error", err)
	}
	c.state = Idle{}
	c.monitor.Recording(c.conversationID, observability.RecordingCancelled)
}

// abort returns to Idle after a failed arm or start, unless something else
// already moved the composer on.
func (c *Composer) abort(session *recording.Session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome := observability.RecordingUnavailable
	switch {
	case stderrors.Is(err, errors.ErrPermissionDenied):
		outcome = observability.RecordingDenied
	case stderrors.Is(err, errors.ErrInvalidState):
		outcome = observability.RecordingCancelled
	}
	c.log.Warn("Recording aborted", "outcome", outcome, "reason", err)
	if c.ownsLocked(session) {
		c.state = Idle{}
		c.monitor.Recording(c.conversationID, outcome)
	}
}

func (c *Composer) owns(session *recording.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownsLocked(session)
}

func (c *Composer) ownsLocked(session *recording.Session) bool {
	st, ok := c.state.(Recording)
	return ok && st.session == session
}

// busy must be called with the lock held.
func (c *Composer) busy() bool {
	st, ok := c.state.(Recording)
	return ok && st.session.Capturing()
}

// reject must be called with the lock held.
func (c *Composer) reject(action string) error {
	var err error
	if c.busy() {
		err = fmt.Errorf("%w: cannot %s while recording", errors.ErrBusy, action)
	} else {
		err = fmt.Errorf("%w: cannot %s from %s", errors.ErrInvalidState, action, c.state.Name())
	}
	c.log.Debug("Composer request rejected", "error", err)
	c.monitor.ComposerRejected(c.conversationID, err)
	return err
}

func typed(text string) State {
	if text == "" {
		return Idle{}
	}
	return TypingText{Buffer: text}
}
