package services_test

import (
	"context"
	"crush-chat/attachment"
	"crush-chat/composer"
	"crush-chat/domain"
	"crush-chat/errors"
	"crush-chat/mocks"
	"crush-chat/observability"
	"crush-chat/recording"
	"crush-chat/repositories"
	"crush-chat/services"
	"crush-chat/store"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	service *services.ChatService
	backend *mocks.MockBackend
	monitor *observability.MonitoringManager
}

func setup(t *testing.T, previewLength int) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messageStore := store.NewMessageStore(log,
		repositories.NewMessageRepository(db, log, nil),
		repositories.NewConversationRepository(db))
	f := &fixture{
		backend: mocks.NewMockBackend(gomock.NewController(t)),
		monitor: observability.NewMonitoringManager(log, prometheus.NewRegistry()),
	}
	f.service = services.NewChatService(log, messageStore, attachment.NewIngestor(log),
		func() recording.Backend { return f.backend }, f.monitor, previewLength)
	return f
}

func peer(text string, at time.Time) domain.Message {
	return domain.NewTextMessage(domain.SenderPeer, text, at)
}

func TestChatService_Open_Returns_The_Same_Composer(t *testing.T) {
	req := require.New(t)
	f := setup(t, 0)

	first, err := f.service.OpenConversation("alice", []string{"me", "alice"})
	req.NoError(err)
	req.NoError(first.Type("half written"))
	req.NoError(f.service.LeaveConversation("alice"))

	second, err := f.service.OpenConversation("alice", []string{"me", "alice"})
	req.NoError(err)
	req.Same(first, second)
	req.Equal(composer.TypingText{Buffer: "half written"}, second.State())
}

func TestChatService_Open_Rejects_Missing_Participants(t *testing.T) {
	req := require.New(t)
	f := setup(t, 0)

	_, err := f.service.OpenConversation("alice", nil)
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestChatService_Unread_Follows_Focus(t *testing.T) {
	req := require.New(t)
	f := setup(t, 0)
	now := time.Now().UTC()

	// Given two conversations, only alice's on screen
	_, err := f.service.OpenConversation("alice", []string{"me", "alice"})
	req.NoError(err)
	_, err = f.service.OpenConversation("bob", []string{"me", "bob"})
	req.NoError(err)
	req.NoError(f.service.LeaveConversation("bob"))

	// When both receive messages
	_, err = f.service.Receive("alice", peer("seen right away", now))
	req.NoError(err)
	_, err = f.service.Receive("bob", peer("one", now))
	req.NoError(err)
	_, err = f.service.Receive("bob", peer("two", now))
	req.NoError(err)

	// Then only the blurred one counts
	req.Equal(2, f.service.TotalUnread())
	req.Equal(uint64(3), f.monitor.GetLatest().MessagesReceived)

	// And opening it clears the counter
	_, err = f.service.OpenConversation("bob", []string{"me", "bob"})
	req.NoError(err)
	req.Equal(0, f.service.TotalUnread())
}

func TestChatService_Receive_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	f := setup(t, 0)

	_, err := f.service.Receive("ghost", peer("boo", time.Now()))
	req.ErrorIs(err, errors.ErrNotFound)
	req.Zero(f.monitor.GetLatest().MessagesReceived)
}

func TestChatService_Inbox(t *testing.T) {
	req := require.New(t)
	f := setup(t, 10)
	now := time.Now().UTC()

	// Given three conversations with activity at different times
	_, err := f.service.OpenConversation("empty", []string{"me", "carol"})
	req.NoError(err)

	alice, err := f.service.OpenConversation("alice", []string{"me", "alice"})
	req.NoError(err)
	req.NoError(alice.Type("A rather long message for a preview"))
	_, err = alice.Send()
	req.NoError(err)

	_, err = f.service.OpenConversation("bob", []string{"me", "bob"})
	req.NoError(err)
	req.NoError(f.service.LeaveConversation("bob"))
	_, err = f.service.Receive("bob", domain.NewFileMessage(domain.SenderPeer,
		domain.Media{URI: "file://notes.pdf", Name: "notes.pdf"}, now.Add(time.Hour)))
	req.NoError(err)

	// When the inbox is listed
	inbox := f.service.Inbox()

	// Then the most recent comes first with a short preview
	req.Equal([]string{"bob", "alice", "empty"}, lo.Map(inbox, func(s domain.ConversationSummary, _ int) string {
		return s.ID
	}))
	req.Equal("notes.pdf", inbox[0].LastMessage)
	req.Equal(1, inbox[0].UnreadCount)
	req.Equal("A rather l…", inbox[1].LastMessage)
	req.Empty(inbox[2].LastMessage)
	req.Equal([]string{"me", "carol"}, inbox[2].ParticipantIDs)
}

func TestChatService_Inbox_Previews_Media(t *testing.T) {
	req := require.New(t)
	f := setup(t, 0)
	now := time.Now().UTC()

	_, err := f.service.OpenConversation("alice", []string{"me", "alice"})
	req.NoError(err)
	_, err = f.service.OpenConversation("bob", []string{"me", "bob"})
	req.NoError(err)

	_, err = f.service.Receive("alice", domain.NewAudioMessage(domain.SenderPeer,
		domain.Media{URI: "file://voice.m4a"}, now))
	req.NoError(err)
	_, err = f.service.Receive("bob", domain.NewFileMessage(domain.SenderPeer,
		domain.Media{URI: "content://picker/42"}, now.Add(-time.Minute)))
	req.NoError(err)

	inbox := f.service.Inbox()
	req.Equal("Audio message", inbox[0].LastMessage)
	req.Equal("File", inbox[1].LastMessage)

	// Short text is kept as is
	_, err = f.service.Receive("bob", peer(strings.Repeat("é", 40), now.Add(time.Minute)))
	req.NoError(err)
	req.Equal(strings.Repeat("é", 40), f.service.Inbox()[0].LastMessage)
}

func TestChatService_Leave_Cancels_Recording(t *testing.T) {
	req := require.New(t)
	f := setup(t, 0)
	ctx := context.Background()

	f.backend.EXPECT().RequestPermission(gomock.Any()).Return(true, nil).Times(1)
	f.backend.EXPECT().Prepare(gomock.Any()).Return(nil).Times(1)
	f.backend.EXPECT().Start(gomock.Any()).Return(nil).Times(1)
	f.backend.EXPECT().Release().Return(nil).Times(1)

	// Given a capture in progress
	c, err := f.service.OpenConversation("alice", []string{"me", "alice"})
	req.NoError(err)
	req.NoError(c.PressMic(ctx))

	// When the user navigates away
	req.NoError(f.service.LeaveConversation("alice"))

	// Then the microphone is released and nothing was sent
	req.Equal(composer.Idle{}, c.State())
	messages, err := f.service.Messages("alice")
	req.NoError(err)
	req.Empty(messages)
}
