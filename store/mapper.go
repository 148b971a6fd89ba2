package store

import (
	"crush-chat/domain"
	"crush-chat/repositories"
	"time"
)

func fromMessage(message domain.Message, storedAt time.Time) repositories.DiskMessage {
	dm := repositories.DiskMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Sender:         string(message.Sender),
		Kind:           string(message.Kind),
		Text:           message.Text,
		CreatedAt:      message.CreatedAt,
		StoredAt:       storedAt,
	}
	if message.Media != nil {
		dm.MediaURI = message.Media.URI
		dm.MediaMime = message.Media.MimeHint
		dm.MediaName = message.Media.Name
		dm.Duration = message.Media.Duration
	}
	return dm
}

func toMessage(dm repositories.DiskMessage) domain.Message {
	message := domain.Message{
		ID:             dm.ID,
		ConversationID: dm.ConversationID,
		Sender:         domain.Sender(dm.Sender),
		Kind:           domain.Kind(dm.Kind),
		Text:           dm.Text,
		CreatedAt:      dm.CreatedAt,
	}
	if message.Kind != domain.KindText {
		message.Media = &domain.Media{
			URI:      dm.MediaURI,
			Duration: dm.Duration,
			MimeHint: dm.MediaMime,
			Name:     dm.MediaName,
		}
	}
	return message
}
