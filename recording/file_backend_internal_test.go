package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/require"
)

func TestWriteSilence_Negative_Duration_Is_Empty(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "rec.wav")

	// Given a clock that went backwards between start and stop
	req.NoError(writeSilence(path, -time.Second))

	// Then only the header is written
	info, err := os.Stat(path)
	req.NoError(err)
	req.EqualValues(44, info.Size())
	mtype, err := mimetype.DetectFile(path)
	req.NoError(err)
	req.True(mtype.Is("audio/wav"))
}
