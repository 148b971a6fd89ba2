//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"crush-chat/errors"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IConversationRepository interface {
	SaveConversation(conversation DiskConversation) error
	GetConversation(id string) (DiskConversation, error)
	ListConversations() ([]DiskConversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) ConversationRepository {
	return ConversationRepository{db: db}
}

type DiskConversation struct {
	ID             string
	ParticipantIDs []string
	CreatedAt      time.Time
}

func (c ConversationRepository) SaveConversation(conversation DiskConversation) error {
	bytes, err := encodeRecord(map[string]any{
		"id": conversation.ID,
		"participant_ids": lo.Map(conversation.ParticipantIDs, func(id string, _ int) any {
			return id
		}),
		"created_at": conversation.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("conv:"+conversation.ID), bytes)
	})
}

// GetConversation returns errors.ErrNotFound when nothing was ever saved under id.
func (c ConversationRepository) GetConversation(id string) (DiskConversation, error) {
	var fields map[string]any
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("conv:" + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			fields, err = decodeRecord(val)
			return err
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return DiskConversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return DiskConversation{}, err
	}

	return toDiskConversation(fields)
}

// ListConversations returns every stored conversation, in id order.
func (c ConversationRepository) ListConversations() ([]DiskConversation, error) {
	var conversations []DiskConversation
	err := Scan(c.db, "conv:", func(record Record) error {
		if record.Err != nil {
			return record.Err
		}
		conversation, err := toDiskConversation(record.Fields)
		if err != nil {
			return err
		}
		conversations = append(conversations, conversation)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func toDiskConversation(fields map[string]any) (DiskConversation, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, stringField(fields, "created_at"))
	if err != nil {
		return DiskConversation{}, fmt.Errorf("conversation created_at: %w", err)
	}
	raw, _ := fields["participant_ids"].([]any)
	return DiskConversation{
		ID: stringField(fields, "id"),
		ParticipantIDs: lo.FilterMap(raw, func(v any, _ int) (string, bool) {
			s, ok := v.(string)
			return s, ok
		}),
		CreatedAt: createdAt,
	}, nil
}
