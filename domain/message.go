// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once stored.
package domain

import (
	"fmt"
	"strings"
	"time"
)

type Sender string

const (
	SenderSelf Sender = "self"
	SenderPeer Sender = "peer"
)

type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Media points at platform-managed content (a recording or a picked file).
type Media struct {
	URI      string
	Duration *time.Duration
	MimeHint string
	Name     string
}

// Message represents an immutable chat event.
// Kind decides which of Text or Media is populated, never both.
type Message struct {
	ID             string // time-ordered, doubles as the sort key
	ConversationID string
	Sender         Sender
	Kind           Kind
	Text           string
	Media          *Media
	CreatedAt      time.Time
}

// Clone returns a copy that shares no pointers with m.
func (m Message) Clone() Message {
	if m.Media == nil {
		return m
	}
	media := *m.Media
	if media.Duration != nil {
		d := *media.Duration
		media.Duration = &d
	}
	m.Media = &media
	return m
}

func NewTextMessage(sender Sender, text string, at time.Time) Message {
	return Message{Sender: sender, Kind: KindText, Text: text, CreatedAt: at}
}

func NewAudioMessage(sender Sender, media Media, at time.Time) Message {
	return Message{Sender: sender, Kind: KindAudio, Media: &media, CreatedAt: at}
}

func NewFileMessage(sender Sender, media Media, at time.Time) Message {
	return Message{Sender: sender, Kind: KindFile, Media: &media, CreatedAt: at}
}

// Validate checks that the payload variant matches the kind.
func (m Message) Validate() error {
	switch m.Sender {
	case SenderSelf, SenderPeer:
	default:
		return fmt.Errorf("unknown sender %q", m.Sender)
	}
	switch m.Kind {
	case KindText:
		if m.Media != nil {
			return fmt.Errorf("text message carries media")
		}
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("text message is blank")
		}
	case KindAudio, KindFile:
		if m.Text != "" {
			return fmt.Errorf("%s message carries text", m.Kind)
		}
		if m.Media == nil || strings.TrimSpace(m.Media.URI) == "" {
			return fmt.Errorf("%s message has no resource locator", m.Kind)
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}
