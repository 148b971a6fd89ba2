package services

import (
	"crush-chat/composer"
	"crush-chat/domain"
	"crush-chat/observability"
	"crush-chat/recording"
	"crush-chat/store"
	"log/slog"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	DefaultPreviewLength = 40
	audioPreview         = "Audio message"
	filePreview          = "File"
)

type IChatService interface {
	OpenConversation(conversationID string, participantIDs []string) (*composer.Composer, error)
	LeaveConversation(conversationID string) error
	Receive(conversationID string, message domain.Message) (domain.Message, error)
	Messages(conversationID string) ([]domain.Message, error)
	Inbox() []domain.ConversationSummary
	TotalUnread() int
}

// ChatService owns one MessageStore for the process and one Composer per
// conversation screen.
type ChatService struct {
	mu            sync.Mutex
	log           *slog.Logger
	store         *store.MessageStore
	ingestor      composer.Ingestor
	newBackend    func() recording.Backend
	monitor       *observability.MonitoringManager
	previewLength int
	composers     map[string]*composer.Composer
}

func NewChatService(log *slog.Logger, store *store.MessageStore, ingestor composer.Ingestor,
	newBackend func() recording.Backend, monitor *observability.MonitoringManager, previewLength int) *ChatService {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	return &ChatService{
		log:           log,
		store:         store,
		ingestor:      ingestor,
		newBackend:    newBackend,
		monitor:       monitor,
		previewLength: previewLength,
		composers:     make(map[string]*composer.Composer),
	}
}

// OpenConversation is called when a conversation screen gains focus.
// The conversation is created on first use and its unread counter reset.
// Reopening a conversation returns the same composer, draft included.
func (s *ChatService) OpenConversation(conversationID string, participantIDs []string) (*composer.Composer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Open(conversationID, participantIDs); err != nil {
		return nil, err
	}
	if err := s.store.Focus(conversationID); err != nil {
		return nil, err
	}
	c, ok := s.composers[conversationID]
	if !ok {
		c = composer.New(s.log, conversationID, s.store, s.ingestor, s.newBackend, s.monitor)
		s.composers[conversationID] = c
	}
	s.log.Debug("Conversation opened", "conversation_id", conversationID)
	return c, nil
}

// LeaveConversation is called when the screen loses focus. Any recording in
// progress is cancelled.
func (s *ChatService) LeaveConversation(conversationID string) error {
	s.mu.Lock()
	c, ok := s.composers[conversationID]
	s.mu.Unlock()

	if ok {
		c.Blur()
	}
	return s.store.Blur(conversationID)
}

func (s *ChatService) Receive(conversationID string, message domain.Message) (domain.Message, error) {
	stored, err := s.store.Receive(conversationID, message)
	if err != nil {
		s.log.Warn("Inbound message dropped", "conversation_id", conversationID, "error", err)
		return domain.Message{}, err
	}
	s.monitor.MessageReceived(conversationID)
	return stored, nil
}

func (s *ChatService) Messages(conversationID string) ([]domain.Message, error) {
	return s.store.List(conversationID)
}

// Inbox lists every conversation, most recent activity first.
func (s *ChatService) Inbox() []domain.ConversationSummary {
	summaries := lo.Map(s.store.Conversations(), func(c domain.Conversation, _ int) domain.ConversationSummary {
		summary := domain.ConversationSummary{
			ID:             c.ID,
			ParticipantIDs: c.ParticipantIDs,
			LastActivity:   c.CreatedAt,
			UnreadCount:    c.UnreadCount,
		}
		if n := len(c.Messages); n > 0 {
			last := c.Messages[n-1]
			summary.LastMessage = s.preview(last)
			summary.LastActivity = last.CreatedAt
		}
		return summary
	})
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].LastActivity.Equal(summaries[j].LastActivity) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries
}

func (s *ChatService) TotalUnread() int {
	return lo.SumBy(s.store.Conversations(), func(c domain.Conversation) int {
		return c.UnreadCount
	})
}

func (s *ChatService) preview(message domain.Message) string {
	switch message.Kind {
	case domain.KindAudio:
		return audioPreview
	case domain.KindFile:
		if message.Media != nil && message.Media.Name != "" {
			return message.Media.Name
		}
		return filePreview
	}
	if utf8.RuneCountInString(message.Text) <= s.previewLength {
		return message.Text
	}
	return string([]rune(message.Text)[:s.previewLength]) + "…"
}
