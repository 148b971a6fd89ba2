//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=../mocks/mock_identity_provider.go -package=mocks
package auth

import (
	"context"
	"crush-chat/errors"
	"crush-chat/repositories"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
)

// IIdentityProvider is what the chat core needs from sign-in: who is the
// current user, and a way to persist fields of that user's record.
type IIdentityProvider interface {
	CurrentUser(ctx context.Context) (Session, error)
	UpdateMetadata(ctx context.Context, patch map[string]any) error
}

type Session struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Metadata    map[string]any
}

// TokenIdentityProvider resolves the signed-in user from a session token and
// keeps the user record in the profile repository.
type TokenIdentityProvider struct {
	log      *slog.Logger
	issuer   *TokenIssuer
	profiles repositories.IProfileRepository
	token    string
}

func NewTokenIdentityProvider(log *slog.Logger, issuer *TokenIssuer,
	profiles repositories.IProfileRepository, token string) *TokenIdentityProvider {
	return &TokenIdentityProvider{log: log, issuer: issuer, profiles: profiles, token: token}
}

func (p *TokenIdentityProvider) CurrentUser(ctx context.Context) (Session, error) {
	profile, err := p.load(ctx)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Metadata:    profile.Metadata,
	}, nil
}

// UpdateMetadata merges patch over the stored metadata, keeping unrelated keys.
func (p *TokenIdentityProvider) UpdateMetadata(ctx context.Context, patch map[string]any) error {
	profile, err := p.load(ctx)
	if err != nil {
		return err
	}
	metadata := maps.Clone(profile.Metadata)
	if metadata == nil {
		metadata = make(map[string]any, len(patch))
	}
	maps.Copy(metadata, patch)
	profile.Metadata = metadata

	if err := p.profiles.SaveProfile(profile); err != nil {
		p.log.Error("Unable to update profile metadata", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}
	return nil
}

// UpdateProfile changes the display fields of the signed-in user.
func (p *TokenIdentityProvider) UpdateProfile(ctx context.Context, displayName, avatarURL string) error {
	profile, err := p.load(ctx)
	if err != nil {
		return err
	}
	profile.DisplayName = displayName
	profile.AvatarURL = avatarURL
	if err := p.profiles.SaveProfile(profile); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}
	return nil
}

func (p *TokenIdentityProvider) load(ctx context.Context) (repositories.Profile, error) {
	if err := ctx.Err(); err != nil {
		return repositories.Profile{}, err
	}
	claims, err := p.issuer.ValidateToken(p.token)
	if err != nil {
		return repositories.Profile{}, err
	}
	profile, err := p.profiles.GetProfile(claims.UserID)
	if stderrors.Is(err, errors.ErrNotFound) {
		// First sign-in: the record does not exist until something is saved.
		return repositories.Profile{UserID: claims.UserID, Metadata: map[string]any{}}, nil
	}
	if err != nil {
		return repositories.Profile{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}
	return profile, nil
}
