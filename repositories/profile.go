//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile_repository.go -package=mocks
package repositories

import (
	"crush-chat/errors"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type IProfileRepository interface {
	SaveProfile(profile Profile) error
	GetProfile(userID string) (Profile, error)
}

type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) IProfileRepository {
	return &ProfileRepository{db: db}
}

// Profile is the signed-in user's record as the identity provider keeps it.
// Metadata is free-form and is where the crush list lives.
type Profile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Metadata    map[string]any
}

func (p ProfileRepository) SaveProfile(profile Profile) error {
	metadata := profile.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	bytes, err := encodeRecord(map[string]any{
		"user_id":      profile.UserID,
		"display_name": profile.DisplayName,
		"avatar_url":   profile.AvatarURL,
		"metadata":     metadata,
	})
	if err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("profile:"+profile.UserID), bytes)
	})
}

func (p ProfileRepository) GetProfile(userID string) (Profile, error) {
	var fields map[string]any
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("profile:" + userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			fields, err = decodeRecord(val)
			return err
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return Profile{}, fmt.Errorf("%w: profile %s", errors.ErrNotFound, userID)
	}
	if err != nil {
		return Profile{}, err
	}
	metadata, _ := fields["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Profile{
		UserID:      stringField(fields, "user_id"),
		DisplayName: stringField(fields, "display_name"),
		AvatarURL:   stringField(fields, "avatar_url"),
		Metadata:    metadata,
	}, nil
}
