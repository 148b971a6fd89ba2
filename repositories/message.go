//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(conversationID string) ([]DiskMessage, error)
	GetMessageIDs(conversationID string) ([]string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID             string
	ConversationID string
	Sender         string
	Kind           string
	Text           string
	MediaURI       string
	MediaMime      string
	MediaName      string
	Duration       *time.Duration
	CreatedAt      time.Time
	StoredAt       time.Time
}

// MessagePrefix is the key prefix of a conversation's messages. The id is
// query-escaped so it never contains ':' and no conversation's prefix is a
// prefix of another's.
func MessagePrefix(conversationID string) string {
	return "msg:" + url.QueryEscape(conversationID) + ":"
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{escaped_conversation_id}:{stored_at_padded}:{id}" so a
// prefix scan returns messages in arrival order, whatever id the sender chose.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := encodeRecord(fromDiskMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
}

// GetMessages returns the history of a conversation oldest first.
// When limitMessages is set only the most recent ones are kept.
func (m MessageRepository) GetMessages(conversationID string) ([]DiskMessage, error) {
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(MessagePrefix(conversationID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Newest first, from the end of the prefix range
		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				fields, err := decodeRecord(value)
				if err != nil {
					return err
				}
				message, err := toDiskMessage(fields)
				if err != nil {
					return err
				}
				diskMessages = append(diskMessages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(diskMessages), nil
}

// GetMessageIDs returns the id of every stored message of a conversation,
// ignoring limitMessages. Only keys are read.
func (m MessageRepository) GetMessageIDs(conversationID string) ([]string, error) {
	var ids []string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(MessagePrefix(conversationID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// {stored_at}:{id}, the id may itself contain ':'
			_, id, ok := strings.Cut(strings.TrimPrefix(string(it.Item().Key()), string(prefix)), ":")
			if ok {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		MessagePrefix(message.ConversationID),
		message.StoredAt.UnixNano(),
		message.ID,
	))
}

func fromDiskMessage(message DiskMessage) map[string]any {
	fields := map[string]any{
		"id":              message.ID,
		"conversation_id": message.ConversationID,
		"sender":          message.Sender,
		"kind":            message.Kind,
		"text":            message.Text,
		"media_uri":       message.MediaURI,
		"media_mime":      message.MediaMime,
		"media_name":      message.MediaName,
		"created_at":      message.CreatedAt.UTC().Format(time.RFC3339Nano),
		"stored_at":       message.StoredAt.UTC().Format(time.RFC3339Nano),
	}
	if message.Duration != nil {
		fields["duration_ns"] = float64(*message.Duration)
	}
	return fields
}

func toDiskMessage(fields map[string]any) (DiskMessage, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, stringField(fields, "created_at"))
	if err != nil {
		return DiskMessage{}, fmt.Errorf("message created_at: %w", err)
	}
	storedAt, err := time.Parse(time.RFC3339Nano, stringField(fields, "stored_at"))
	if err != nil {
		return DiskMessage{}, fmt.Errorf("message stored_at: %w", err)
	}
	message := DiskMessage{
		ID:             stringField(fields, "id"),
		ConversationID: stringField(fields, "conversation_id"),
		Sender:         stringField(fields, "sender"),
		Kind:           stringField(fields, "kind"),
		Text:           stringField(fields, "text"),
		MediaURI:       stringField(fields, "media_uri"),
		MediaMime:      stringField(fields, "media_mime"),
		MediaName:      stringField(fields, "media_name"),
		CreatedAt:      createdAt,
		StoredAt:       storedAt,
	}
	if ns, ok := fields["duration_ns"].(float64); ok {
		message.Duration = lo.ToPtr(time.Duration(ns))
	}
	return message, nil
}
