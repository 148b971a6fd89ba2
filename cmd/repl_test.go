package main

import (
	"bytes"
	"context"
	"crush-chat/attachment"
	"crush-chat/auth"
	"crush-chat/crush"
	"crush-chat/observability"
	"crush-chat/recording"
	"crush-chat/repositories"
	"crush-chat/services"
	"crush-chat/store"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestApplication(t *testing.T, microphone bool) *application {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	issuer := auth.NewTokenIssuer("a_long_enough_test_secret_for_hs256", time.Hour)
	token, err := issuer.GenerateToken("me")
	req.NoError(err)
	identity := auth.NewTokenIdentityProvider(log, issuer, repositories.NewProfileRepository(db), token)
	monitor := observability.NewMonitoringManager(log, prometheus.NewRegistry())
	messageStore := store.NewMessageStore(log,
		repositories.NewMessageRepository(db, log, nil),
		repositories.NewConversationRepository(db))
	recordings := t.TempDir()

	return &application{
		log:      log,
		userID:   "me",
		monitor:  monitor,
		identity: identity,
		crushes:  crush.NewRegistry(log, identity, monitor, crush.DefaultHost),
		chat: services.NewChatService(log, messageStore, attachment.NewIngestor(log), func() recording.Backend {
			return recording.NewFileBackend(log, recordings, microphone)
		}, monitor, 0),
	}
}

func TestREPL_Conversation(t *testing.T) {
	req := require.New(t)
	app := newTestApplication(t, true)
	ctx := context.Background()
	var out bytes.Buffer
	r := newREPL(app, strings.NewReader(""), &out)

	file := filepath.Join(t.TempDir(), "notes.txt")
	req.NoError(os.WriteFile(file, []byte("some notes"), 0o644))

	for _, line := range []string{
		"/open alice",
		"hello alice",
		"/receive hey you",
		"/attach " + file,
		"/mic",
		"/release",
	} {
		req.NoError(r.Exec(ctx, line), line)
	}

	messages, err := app.chat.Messages("alice")
	req.NoError(err)
	req.Len(messages, 4)
	req.Contains(out.String(), "hello alice")
	req.Contains(out.String(), "[file notes.txt text/plain")
	req.Contains(out.String(), "[audio ")

	// Leaving keeps the conversation in the inbox
	req.NoError(r.Exec(ctx, "/leave"))
	out.Reset()
	req.NoError(r.Exec(ctx, "/inbox"))
	req.Contains(out.String(), "alice")
	req.Contains(out.String(), "Audio message")
}

func TestREPL_Requires_A_Conversation(t *testing.T) {
	req := require.New(t)
	r := newREPL(newTestApplication(t, true), strings.NewReader(""), &bytes.Buffer{})

	req.Error(r.Exec(context.Background(), "hello?"))
	req.Error(r.Exec(context.Background(), "/mic"))
	req.Error(r.Exec(context.Background(), "/nope"))
	req.ErrorIs(r.Exec(context.Background(), "/quit"), errQuit)
}

func TestREPL_Microphone_Declined(t *testing.T) {
	req := require.New(t)
	app := newTestApplication(t, false)
	r := newREPL(app, strings.NewReader(""), &bytes.Buffer{})

	req.NoError(r.Exec(context.Background(), "/open bob"))
	req.Error(r.Exec(context.Background(), "/mic"))
	req.NoError(r.Exec(context.Background(), "still typing"))
}

func TestREPL_Crushes(t *testing.T) {
	req := require.New(t)
	app := newTestApplication(t, true)
	ctx := context.Background()
	var out bytes.Buffer
	r := newREPL(app, strings.NewReader(""), &out)

	req.NoError(r.Exec(ctx, "/crush add https://www.instagram.com/jane_doe/"))
	req.NoError(r.Exec(ctx, "/crush add bob"))
	req.Error(r.Exec(ctx, "/crush add   "))

	crushes := app.crushes.List()
	req.Len(crushes, 2)
	req.Equal("jane_doe", crushes[0].InstagramHandle)

	req.NoError(r.Exec(ctx, "/crush rm "+crushes[0].ID))
	req.NoError(r.Exec(ctx, "/crush rm "+crushes[0].ID))
	out.Reset()
	req.NoError(r.Exec(ctx, "/crushes"))
	req.Contains(out.String(), "@bob")
	req.NotContains(out.String(), "jane_doe")
}

func TestREPL_Run_Stops_At_End_Of_Input(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	r := newREPL(newTestApplication(t, true), strings.NewReader("/open alice\nhi\n/nope\n/quit\n"), &out)

	req.NoError(r.Run(context.Background()))
	req.Contains(out.String(), "unknown command /nope")
}
