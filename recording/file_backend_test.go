package recording_test

import (
	"context"
	"crush-chat/recording"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_Writes_A_Playable_File(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	backend := recording.NewFileBackend(slog.Default(), t.TempDir(), true)
	session := recording.NewSession(slog.Default(), backend)

	req.NoError(session.Arm(ctx))
	req.NoError(session.Start(ctx))
	req.NoError(session.Stop(ctx))

	result, ok := session.Result()
	req.True(ok)
	req.True(strings.HasPrefix(result.URI, "file://"))

	content, err := os.ReadFile(strings.TrimPrefix(result.URI, "file://"))
	req.NoError(err)
	req.True(mimetype.Detect(content).Is("audio/wav"))
}

func TestFileBackend_Declined(t *testing.T) {
	req := require.New(t)
	backend := recording.NewFileBackend(slog.Default(), t.TempDir(), false)

	allowed, err := backend.RequestPermission(context.Background())
	req.NoError(err)
	req.False(allowed)

	_, err = backend.Stop(context.Background())
	req.Error(err)
}
