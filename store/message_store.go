// Package store keeps the per-conversation message logs of the running process.
// Every outgoing and incoming message goes through Append or Receive, which
// makes the store the single sequencing point for ordering.
package store

import (
	"crush-chat/domain"
	"crush-chat/errors"
	"crush-chat/repositories"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type MessageStore struct {
	mu            sync.RWMutex
	log           *slog.Logger
	validator     *validator.Validate
	messages      repositories.IMessageRepository
	conversations repositories.IConversationRepository
	now           func() time.Time
	byID          map[string]*conversation
}

type conversation struct {
	id           string
	participants []string
	createdAt    time.Time
	messages     []domain.Message
	ids          map[string]struct{}
	unread       int
	focused      bool
}

type openRequest struct {
	ConversationID string   `validate:"required"`
	ParticipantIDs []string `validate:"required,min=1,dive,required"`
}

func NewMessageStore(log *slog.Logger,
	messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository) *MessageStore {
	return &MessageStore{
		log:           log,
		validator:     validator.New(),
		messages:      messages,
		conversations: conversations,
		now:           func() time.Time { return time.Now().UTC() },
		byID:          make(map[string]*conversation),
	}
}

// Open returns the conversation, creating it on first navigation.
// A conversation already persisted by an earlier run is hydrated with its
// stored participants and history; participantIDs is only used for new ones.
func (s *MessageStore) Open(conversationID string, participantIDs []string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byID[conversationID]; ok {
		return c.snapshot(), nil
	}
	request := openRequest{ConversationID: conversationID, ParticipantIDs: participantIDs}
	if err := s.validator.Struct(request); err != nil {
		return domain.Conversation{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	c, err := s.hydrate(conversationID)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrNotFound):
		c = &conversation{
			id:           conversationID,
			participants: lo.Uniq(participantIDs),
			createdAt:    s.now(),
			ids:          make(map[string]struct{}),
		}
		err = s.conversations.SaveConversation(repositories.DiskConversation{
			ID:             c.id,
			ParticipantIDs: c.participants,
			CreatedAt:      c.createdAt,
		})
		if err != nil {
			s.log.Error("Unable to persist conversation", "conversation_id", conversationID, "error", err)
			return domain.Conversation{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
		}
	default:
		s.log.Error("Unable to load conversation", "conversation_id", conversationID, "error", err)
		return domain.Conversation{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}
	s.byID[conversationID] = c
	return c.snapshot(), nil
}

// Restore loads every conversation persisted by earlier runs, so that the
// inbox lists them before they are opened again. Already open ones are kept.
func (s *MessageStore) Restore() error {
	stored, err := s.conversations.ListConversations()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dc := range stored {
		if _, ok := s.byID[dc.ID]; ok {
			continue
		}
		c, err := s.hydrate(dc.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
		}
		s.byID[dc.ID] = c
	}
	s.log.Debug("Conversations restored", "count", len(stored))
	return nil
}

func (s *MessageStore) hydrate(conversationID string) (*conversation, error) {
	stored, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.messages.GetMessages(conversationID)
	if err != nil {
		return nil, err
	}
	// history may be capped, ids cover every stored message
	ids, err := s.messages.GetMessageIDs(conversationID)
	if err != nil {
		return nil, err
	}
	c := &conversation{
		id:           stored.ID,
		participants: stored.ParticipantIDs,
		createdAt:    stored.CreatedAt,
		ids:          make(map[string]struct{}, len(ids)),
	}
	for _, dm := range history {
		c.messages = append(c.messages, toMessage(dm))
		c.ids[dm.ID] = struct{}{}
	}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	s.log.Debug("Conversation hydrated", "conversation_id", conversationID, "messages", len(c.messages))
	return c, nil
}

// Append stores an outgoing message at the tail of the conversation.
// An id is generated when absent; ids are UUIDv7 so they sort in send order.
func (s *MessageStore) Append(conversationID string, message domain.Message) (domain.Message, error) {
	return s.insert(conversationID, message, false)
}

// Receive stores an inbound peer message in arrival order. The unread counter
// only moves while the conversation is not focused.
func (s *MessageStore) Receive(conversationID string, message domain.Message) (domain.Message, error) {
	message.Sender = domain.SenderPeer
	return s.insert(conversationID, message, true)
}

func (s *MessageStore) insert(conversationID string, message domain.Message, inbound bool) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Message{}, fmt.Errorf("message id: %w", err)
		}
		message.ID = id.String()
	}
	if _, dup := c.ids[message.ID]; dup {
		return domain.Message{}, fmt.Errorf("%w: duplicate message id %s", errors.ErrInvalidInput, message.ID)
	}
	message.ConversationID = conversationID
	storedAt := s.now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = storedAt
	}
	if err := message.Validate(); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	if err := s.messages.StoreMessage(fromMessage(message, storedAt)); err != nil {
		s.log.Error("Unable to persist message", "conversation_id", conversationID, "message_id", message.ID, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}
	c.messages = append(c.messages, message.Clone())
	c.ids[message.ID] = struct{}{}
	if inbound && !c.focused {
		c.unread++
	}
	return message.Clone(), nil
}

// List returns a snapshot; re-query after a mutation to observe it.
func (s *MessageStore) List(conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	return cloneMessages(c.messages), nil
}

func (s *MessageStore) Get(conversationID string) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	return c.snapshot(), nil
}

// Conversations returns every conversation opened by this process.
func (s *MessageStore) Conversations() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.MapToSlice(s.byID, func(_ string, c *conversation) domain.Conversation {
		return c.snapshot()
	})
}

// MarkRead resets the unread counter. Idempotent.
func (s *MessageStore) MarkRead(conversationID string) error {
	return s.update(conversationID, func(c *conversation) {
		c.unread = 0
	})
}

// Focus is called when the conversation view gains focus.
func (s *MessageStore) Focus(conversationID string) error {
	return s.update(conversationID, func(c *conversation) {
		c.focused = true
		c.unread = 0
	})
}

func (s *MessageStore) Blur(conversationID string) error {
	return s.update(conversationID, func(c *conversation) {
		c.focused = false
	})
}

func (s *MessageStore) update(conversationID string, fn func(c *conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	fn(c)
	return nil
}

func (c *conversation) snapshot() domain.Conversation {
	return domain.Conversation{
		ID:             c.id,
		ParticipantIDs: append([]string(nil), c.participants...),
		Messages:       cloneMessages(c.messages),
		UnreadCount:    c.unread,
		CreatedAt:      c.createdAt,
	}
}

func cloneMessages(messages []domain.Message) []domain.Message {
	if messages == nil {
		return nil
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.Message { return m.Clone() })
}
