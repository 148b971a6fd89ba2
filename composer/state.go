package composer

import "crush-chat/recording"

// State is exactly one of Idle, TypingText, Recording or EmojiPicking.
type State interface {
	Name() string
	isState()
}

type Idle struct{}

type TypingText struct {
	Buffer string
}

// Recording owns the capture session for as long as the composer is in it.
type Recording struct {
	session *recording.Session
}

type EmojiPicking struct {
	Buffer string
}

func (Idle) Name() string         { return "Idle" }
func (TypingText) Name() string   { return "TypingText" }
func (Recording) Name() string    { return "Recording" }
func (EmojiPicking) Name() string { return "EmojiPicking" }

func (Idle) isState()         {}
func (TypingText) isState()   {}
func (Recording) isState()    {}
func (EmojiPicking) isState() {}

func (r Recording) SessionState() recording.State {
	return r.session.State()
}

// Buffer returns the text being composed, if any.
func Buffer(s State) string {
	switch st := s.(type) {
	case TypingText:
		return st.Buffer
	case EmojiPicking:
		return st.Buffer
	}
	return ""
}
