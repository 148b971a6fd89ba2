// Package attachment turns what the media pickers and the recorder hand back
// into message payloads. It validates, it never persists.
package attachment

import (
	"crush-chat/domain"
	"crush-chat/domain/mimetypes"
	"crush-chat/errors"
	"crush-chat/recording"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type PickerStatus string

const (
	PickerSuccess   PickerStatus = "success"
	PickerCancelled PickerStatus = "cancel"
	PickerFailed    PickerStatus = "error"
)

// PickerResult is the structured answer of a document or media picker.
// Header holds the first bytes of the file when the picker could read them.
type PickerResult struct {
	Status   PickerStatus
	URI      string
	Name     string
	MimeType string
	Size     int64
	Header   []byte
}

// CompletedRecording is the part of a recording session the ingestor reads.
type CompletedRecording interface {
	State() recording.State
	Result() (recording.Result, bool)
}

type Ingestor struct {
	log       *slog.Logger
	validator *validator.Validate
}

type fileRequest struct {
	Status PickerStatus `validate:"required,eq=success"`
	URI    string       `validate:"required"`
}

func NewIngestor(log *slog.Logger) *Ingestor {
	return &Ingestor{log: log, validator: validator.New()}
}

// IngestFile accepts any successful pick with a resource locator.
// Type and size are left to the upstream pickers.
func (i *Ingestor) IngestFile(result PickerResult) (domain.Media, error) {
	request := fileRequest{Status: result.Status, URI: strings.TrimSpace(result.URI)}
	if err := i.validator.Struct(request); err != nil {
		i.log.Debug("Picker result rejected", "status", result.Status, "error", err)
		return domain.Media{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	name := strings.TrimSpace(result.Name)
	if name == "" {
		name = path.Base(request.URI)
	}
	return domain.Media{
		URI:      request.URI,
		MimeHint: mimeHint(result, name),
		Name:     name,
	}, nil
}

// IngestRecording accepts a Completed session only.
func (i *Ingestor) IngestRecording(session CompletedRecording) (domain.Media, error) {
	state := session.State()
	result, ok := session.Result()
	if state != recording.Completed || !ok {
		return domain.Media{}, fmt.Errorf("%w: recording is %s", errors.ErrInvalidState, state)
	}
	media := domain.Media{
		URI:      result.URI,
		Duration: lo.ToPtr(result.Duration),
	}
	if hint := mimetypes.FromName(result.URI); hint != mimetypes.Unknown {
		media.MimeHint = string(hint)
	}
	return media, nil
}

// mimeHint prefers what the picker declared, then the sniffed header, then the extension.
func mimeHint(result PickerResult, name string) string {
	candidates := []mimetypes.MIME{
		mimetypes.ToMIME(result.MimeType),
		mimetypes.Detect(result.Header),
		mimetypes.FromName(name),
		mimetypes.FromName(result.URI),
	}
	hint, ok := lo.Find(candidates, func(m mimetypes.MIME) bool {
		return m != mimetypes.Unknown && m != mimetypes.ApplicationOctetStream
	})
	if !ok {
		return ""
	}
	return string(hint)
}
