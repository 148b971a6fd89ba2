// Package crush keeps the signed-in user's private list of crushes.
//
// The list lives in the identity provider's metadata under the "crushes" key,
// as a list of {id, instagramHandle} records. Every change is written through;
// a failed write rolls the in-memory list back.
package crush

import (
	"context"
	"crush-chat/auth"
	"crush-chat/domain"
	"crush-chat/errors"
	"crush-chat/observability"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

const (
	MetadataKey = "crushes"
	DefaultHost = "instagram.com"
)

type Registry struct {
	mu        sync.Mutex
	log       *slog.Logger
	validator *validator.Validate
	identity  auth.IIdentityProvider
	monitor   *observability.MonitoringManager
	host      string
	crushes   []domain.Crush
}

type addRequest struct {
	Handle string `validate:"required"`
}

func NewRegistry(log *slog.Logger, identity auth.IIdentityProvider,
	monitor *observability.MonitoringManager, host string) *Registry {
	if host == "" {
		host = DefaultHost
	}
	return &Registry{
		log:       log,
		validator: validator.New(),
		identity:  identity,
		monitor:   monitor,
		host:      host,
	}
}

// Normalize extracts the handle from a profile URL on host, e.g.
// https://www.instagram.com/jane_doe/ gives jane_doe. Anything else is not a
// profile URL and reports false.
func Normalize(input, host string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}
	got := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if got != strings.TrimPrefix(strings.ToLower(host), "www.") {
		return "", false
	}
	segment, _, _ := strings.Cut(strings.TrimLeft(u.Path, "/"), "/")
	if segment == "" {
		return "", false
	}
	return segment, true
}

func (r *Registry) Normalize(input string) (string, bool) {
	return Normalize(input, r.host)
}

// Resolve turns what the user typed into a handle: a profile URL is
// normalized, anything else is taken literally.
func (r *Registry) Resolve(input string) string {
	if handle, ok := r.Normalize(input); ok {
		return handle
	}
	return strings.TrimSpace(input)
}

// Load replaces the in-memory list with the one stored in the user's metadata.
func (r *Registry) Load(ctx context.Context) error {
	session, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	var crushes []domain.Crush
	if raw, ok := session.Metadata[MetadataKey]; ok && raw != nil {
		if err := mapstructure.Decode(raw, &crushes); err != nil {
			r.log.Error("Unable to decode stored crushes", "user_id", session.UserID, "error", err)
			return fmt.Errorf("%w: crushes: %v", errors.ErrPersistenceFailed, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.crushes = lo.Filter(crushes, func(c domain.Crush, _ int) bool {
		return c.ID != "" && strings.TrimSpace(c.InstagramHandle) != ""
	})
	if dropped := len(crushes) - len(r.crushes); dropped > 0 {
		r.log.Warn("Ignoring malformed crush records", "count", dropped)
	}
	r.monitor.SetCrushes(len(r.crushes))
	return nil
}

// Add appends a crush for handle. Handles are kept verbatim and
// duplicates are allowed.
func (r *Registry) Add(ctx context.Context, handle string) (domain.Crush, error) {
	if err := r.validator.Struct(addRequest{Handle: strings.TrimSpace(handle)}); err != nil {
		return domain.Crush{}, fmt.Errorf("%w: handle: %v", errors.ErrInvalidInput, err)
	}
	crush := domain.Crush{ID: uuid.NewString(), InstagramHandle: handle}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := append(slices.Clone(r.crushes), crush)
	if err := r.persist(ctx, next); err != nil {
		return domain.Crush{}, err
	}
	r.crushes = next
	r.monitor.SetCrushes(len(r.crushes))
	r.log.Debug("Crush added", "crush_id", crush.ID)
	return crush, nil
}

// Remove deletes the crush with id. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, idx, found := lo.FindIndexOf(r.crushes, func(c domain.Crush) bool { return c.ID == id })
	if !found {
		return nil
	}
	next := slices.Delete(slices.Clone(r.crushes), idx, idx+1)
	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.crushes = next
	r.monitor.SetCrushes(len(r.crushes))
	r.log.Debug("Crush removed", "crush_id", id)
	return nil
}

func (r *Registry) List() []domain.Crush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.crushes)
}

// persist must be called with the lock held. The in-memory list is only
// swapped by the caller once this returns nil.
func (r *Registry) persist(ctx context.Context, crushes []domain.Crush) error {
	records := lo.Map(crushes, func(c domain.Crush, _ int) any {
		return map[string]any{"id": c.ID, "instagramHandle": c.InstagramHandle}
	})
	err := r.identity.UpdateMetadata(ctx, map[string]any{MetadataKey: records})
	if err == nil {
		return nil
	}
	r.log.Error("Unable to persist crushes", "error", err)
	if stderrors.Is(err, errors.ErrPersistenceFailed) || stderrors.Is(err, errors.ErrUnauthenticated) {
		return err
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
}
