package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	var config Config
	err := env.Unmarshal(env.EnvSet{
		"BADGER_FILEPATH": "/tmp/crush",
		"LOG_LEVEL":       "DEBUG",
		"JWT_SECRET":      "secret",
		"USER_ID":         "user_1",
	}, &config)

	req.NoError(err)
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal("instagram.com", config.ProfileHost)
	req.Equal(40, config.PreviewLength)
	req.True(config.MicrophoneAllowed)
	req.Zero(config.DebugPort)
}

func TestConfig_Overrides(t *testing.T) {
	req := require.New(t)

	var config Config
	err := env.Unmarshal(env.EnvSet{
		"BADGER_FILEPATH":     "/tmp/crush",
		"LOG_LEVEL":           "INFO",
		"JWT_SECRET":          "secret",
		"USER_ID":             "user_1",
		"LIMIT_MESSAGES":      "50",
		"PREVIEW_LENGTH":      "12",
		"MICROPHONE_ALLOWED":  "false",
		"AUTH_TOKEN_DURATION": "1h",
	}, &config)

	req.NoError(err)
	req.Equal(50, *config.LimitMessages)
	req.Equal(12, config.PreviewLength)
	req.False(config.MicrophoneAllowed)
	req.Equal(time.Hour, config.AuthTokenDuration)
}

func TestConfig_Missing_Required(t *testing.T) {
	req := require.New(t)

	var config Config
	err := env.Unmarshal(env.EnvSet{"LOG_LEVEL": "INFO"}, &config)
	req.Error(err)
}
