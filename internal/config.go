package internal

import "time"

type Config struct {
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES"`
	ProfileHost       string        `env:"PROFILE_HOST,default=instagram.com"`
	PreviewLength     int           `env:"PREVIEW_LENGTH,default=40"`
	UserID            string        `env:"USER_ID,required=true"`
	DisplayName       string        `env:"DISPLAY_NAME"`
	RecordingsDir     string        `env:"RECORDINGS_DIR,default=recordings"`
	MicrophoneAllowed bool          `env:"MICROPHONE_ALLOWED,default=true"`
	DebugPort         int           `env:"DEBUG_PORT"`
}
