package attachment

import (
	"crush-chat/errors"
	"crush-chat/recording"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRecording struct {
	state  recording.State
	result recording.Result
}

func (f fakeRecording) State() recording.State { return f.state }

func (f fakeRecording) Result() (recording.Result, bool) {
	return f.result, f.state == recording.Completed
}

func TestIngestFile(t *testing.T) {
	ingestor := NewIngestor(slog.Default())

	tests := []struct {
		name     string
		result   PickerResult
		wantErr  bool
		wantName string
		wantMime string
	}{
		{"declared type wins", PickerResult{Status: PickerSuccess, URI: "file://a/report", Name: "report", MimeType: "application/pdf; charset=binary"}, false, "report", "application/pdf"},
		{"sniffed header", PickerResult{Status: PickerSuccess, URI: "content://42", Name: "scan", Header: []byte("%PDF-1.4\n")}, false, "scan", "application/pdf"},
		{"extension fallback", PickerResult{Status: PickerSuccess, URI: "file://docs/song.mp3"}, false, "song.mp3", "audio/mpeg"},
		{"nothing known", PickerResult{Status: PickerSuccess, URI: "content://42"}, false, "42", ""},
		{"cancelled picker", PickerResult{Status: PickerCancelled, URI: "file://a.pdf"}, true, "", ""},
		{"failed picker", PickerResult{Status: PickerFailed}, true, "", ""},
		{"blank locator", PickerResult{Status: PickerSuccess, URI: "   "}, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			media, err := ingestor.IngestFile(tt.result)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrInvalidInput)
				return
			}
			req.NoError(err)
			req.Equal(tt.wantName, media.Name)
			req.Equal(tt.wantMime, media.MimeHint)
			req.Nil(media.Duration)
		})
	}
}

func TestIngestRecording(t *testing.T) {
	req := require.New(t)
	ingestor := NewIngestor(slog.Default())

	media, err := ingestor.IngestRecording(fakeRecording{
		state:  recording.Completed,
		result: recording.Result{URI: "file://rec1.m4a", Duration: 4 * time.Second},
	})
	req.NoError(err)
	req.Equal("file://rec1.m4a", media.URI)
	req.Equal("audio/mp4", media.MimeHint)
	req.Equal(4*time.Second, *media.Duration)

	for _, state := range []recording.State{recording.Unarmed, recording.Capturing, recording.Cancelled, recording.Failed} {
		_, err = ingestor.IngestRecording(fakeRecording{state: state})
		req.ErrorIs(err, errors.ErrInvalidState)
	}
}
