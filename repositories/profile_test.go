package repositories

import (
	"crush-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Profile_Metadata_Round_Trip(t *testing.T) {
	req := require.New(t)
	repository := NewProfileRepository(openDB(t))
	profile := Profile{
		UserID:      "user_1",
		DisplayName: "Sam",
		AvatarURL:   "https://example.com/sam.png",
		Metadata: map[string]any{
			"crushes": []any{
				map[string]any{"id": "1", "instagramHandle": "Jane_Doe"},
			},
			"theme": "dark",
		},
	}

	req.NoError(repository.SaveProfile(profile))

	fetched, err := repository.GetProfile("user_1")
	req.NoError(err)
	req.Equal(profile, fetched)
}

func Test_Profile_Without_Metadata(t *testing.T) {
	req := require.New(t)
	repository := NewProfileRepository(openDB(t))

	req.NoError(repository.SaveProfile(Profile{UserID: "user_2"}))

	fetched, err := repository.GetProfile("user_2")
	req.NoError(err)
	req.NotNil(fetched.Metadata)
	req.Empty(fetched.Metadata)

	_, err = repository.GetProfile("ghost")
	req.ErrorIs(err, errors.ErrNotFound)
}
