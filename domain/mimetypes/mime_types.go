package mimetypes

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ApplicationPDF         MIME = "application/pdf"
	ApplicationJSON        MIME = "application/json"
	ApplicationOctetStream MIME = "application/octet-stream"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"

	AudioMP4  MIME = "audio/mp4"
	AudioMPEG MIME = "audio/mpeg"
	AudioWAV  MIME = "audio/wav"
	AudioAAC  MIME = "audio/aac"
	AudioOGG  MIME = "audio/ogg"
	Audio3GPP MIME = "audio/3gpp"
)

// extensions the platform recorders and pickers produce that the system
// mime table does not always know about.
var extensions = map[string]MIME{
	".m4a":  AudioMP4,
	".mp3":  AudioMPEG,
	".wav":  AudioWAV,
	".aac":  AudioAAC,
	".ogg":  AudioOGG,
	".3gp":  Audio3GPP,
	".caf":  "audio/x-caf",
	".pdf":  ApplicationPDF,
	".png":  ImagePNG,
	".jpg":  ImageJPEG,
	".jpeg": ImageJPEG,
	".gif":  ImageGIF,
	".txt":  TextPlain,
	".json": ApplicationJSON,
}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// ToMIME strips parameters and lowercases a raw media type.
func ToMIME(raw string) MIME {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil || mt == "" {
		return Unknown
	}
	return MIME(strings.ToLower(mt))
}

// FromName guesses a type from the extension of a file name or uri.
func FromName(name string) MIME {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return Unknown
	}
	if m, ok := extensions[ext]; ok {
		return m
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return ToMIME(t)
	}
	return Unknown
}

// Detect sniffs the leading bytes of a file.
func Detect(header []byte) MIME {
	if len(header) == 0 {
		return Unknown
	}
	return ToMIME(mimetype.Detect(header).String())
}

func (m MIME) IsAudio() bool {
	return strings.HasPrefix(string(m), "audio/")
}
