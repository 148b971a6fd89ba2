package recording

import (
	"context"
	"crush-chat/errors"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sampleRate    = 8000
	bitsPerSample = 16
	channels      = 1
)

// FileBackend is a recorder for terminals without a microphone: it writes a
// silent PCM WAV file as long as the capture lasted.
type FileBackend struct {
	mu      sync.Mutex
	log     *slog.Logger
	dir     string
	allowed bool
	now     func() time.Time
	started time.Time
	path    string
}

// NewFileBackend writes recordings into dir. When allowed is false the
// permission request is declined, as a user would.
func NewFileBackend(log *slog.Logger, dir string, allowed bool) *FileBackend {
	return &FileBackend{log: log, dir: dir, allowed: allowed, now: time.Now}
}

func (b *FileBackend) RequestPermission(ctx context.Context) (bool, error) {
	return b.allowed, ctx.Err()
}

func (b *FileBackend) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeviceUnavailable, err)
	}
	return nil
}

func (b *FileBackend) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = b.now()
	b.path = filepath.Join(b.dir, uuid.NewString()+".wav")
	return nil
}

func (b *FileBackend) Stop(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.path == "" {
		return "", fmt.Errorf("recorder was not started")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	elapsed := b.now().Sub(b.started)
	if err := writeSilence(b.path, elapsed); err != nil {
		return "", err
	}
	b.log.Debug("Recording written", "path", b.path, "duration", elapsed)
	return "file://" + b.path, nil
}

func (b *FileBackend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.path = ""
	return nil
}

func writeSilence(path string, d time.Duration) error {
	d = max(d, 0)
	samples := uint32(d.Seconds() * sampleRate)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataSize := samples * uint32(blockAlign)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'}, uint32(36 + dataSize), [4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '}, uint32(16), uint16(1), uint16(channels),
		uint32(sampleRate), uint32(sampleRate) * uint32(blockAlign), blockAlign, uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'}, dataSize,
	}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := f.Write(make([]byte, dataSize)); err != nil {
		return err
	}
	return f.Close()
}
