// Package config loads service settings (flags, environment, .env) and the
// booking file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "SPORTSCHED"

// Setting keys. They double as flag names; the environment variable is
// SPORTSCHED_ followed by the key upper-cased with dashes as underscores.
const (
	KeyConfig                  = "config"
	KeyRetryAttempts           = "retry-attempts"
	KeyRetryDelayMinutes       = "retry-delay-minutes"
	KeyOneOffRetryDelaySeconds = "oneoff-retry-delay-seconds"
	KeyOffsetSeconds           = "offset-seconds"
	KeyBookingWindowDays       = "booking-window-days"
	KeySlotGraceAttempts       = "slot-grace-attempts"
	KeyTimeZone                = "time-zone"
	KeyLogLevel                = "log-level"
	KeyDatabaseURL             = "database-url"
	KeyAMQPURL                 = "amqp-url"
	KeyAMQPQueue               = "amqp-queue"
	KeyRedisAddr               = "redis-addr"
	KeyRedisPassword           = "redis-password"
	KeySiteBaseURL             = "site-base-url"
	KeyAPIBaseURL              = "api-base-url"
	KeySecretKey               = "secret-key"
)

const (
	DefaultRetryAttempts     = 3
	DefaultRetryDelayMinutes = 2
	DefaultTimeZone          = "Europe/Madrid"
	DefaultLogLevel          = "INFO"
	DefaultAMQPQueue         = "booking.outcome"
	DefaultSiteBaseURL       = "https://social.resasports.com"
	DefaultAPIBaseURL        = "https://sport.nubapp.com"
)

type Settings struct {
	ConfigPath string

	RetryAttempts           int `validate:"min=1"`
	RetryDelayMinutes       int `validate:"min=0"`
	OneOffRetryDelaySeconds int `validate:"min=0"`
	OffsetSeconds           int `validate:"min=0"`
	BookingWindowDays       int `validate:"min=0"`
	SlotGraceAttempts       int `validate:"min=0"`

	TimeZone string `validate:"required"`
	LogLevel string `validate:"oneof=DEBUG INFO WARNING WARN ERROR"`

	DatabaseURL   string
	AMQPURL       string
	AMQPQueue     string `validate:"required_with=AMQPURL"`
	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisPassword string

	SiteBaseURL string `validate:"required,url"`
	APIBaseURL  string `validate:"required,url"`

	// SecretKey opens sealed passwords in the booking file.
	SecretKey string
}

func (s Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMinutes) * time.Minute
}

func (s Settings) OneOffRetryDelay() time.Duration {
	return time.Duration(s.OneOffRetryDelaySeconds) * time.Second
}

func (s Settings) Offset() time.Duration {
	return time.Duration(s.OffsetSeconds) * time.Second
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRetryAttempts, DefaultRetryAttempts)
	v.SetDefault(KeyRetryDelayMinutes, DefaultRetryDelayMinutes)
	v.SetDefault(KeyTimeZone, DefaultTimeZone)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyAMQPQueue, DefaultAMQPQueue)
	v.SetDefault(KeySiteBaseURL, DefaultSiteBaseURL)
	v.SetDefault(KeyAPIBaseURL, DefaultAPIBaseURL)
}

// Load reads Settings from v and validates them.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		ConfigPath:              strings.TrimSpace(v.GetString(KeyConfig)),
		RetryAttempts:           v.GetInt(KeyRetryAttempts),
		RetryDelayMinutes:       v.GetInt(KeyRetryDelayMinutes),
		OneOffRetryDelaySeconds: v.GetInt(KeyOneOffRetryDelaySeconds),
		OffsetSeconds:           v.GetInt(KeyOffsetSeconds),
		BookingWindowDays:       v.GetInt(KeyBookingWindowDays),
		SlotGraceAttempts:       v.GetInt(KeySlotGraceAttempts),
		TimeZone:                strings.TrimSpace(v.GetString(KeyTimeZone)),
		LogLevel:                strings.ToUpper(strings.TrimSpace(v.GetString(KeyLogLevel))),
		DatabaseURL:             strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		AMQPURL:                 strings.TrimSpace(v.GetString(KeyAMQPURL)),
		AMQPQueue:               strings.TrimSpace(v.GetString(KeyAMQPQueue)),
		RedisAddr:               strings.TrimSpace(v.GetString(KeyRedisAddr)),
		RedisPassword:           v.GetString(KeyRedisPassword),
		SiteBaseURL:             strings.TrimRight(strings.TrimSpace(v.GetString(KeySiteBaseURL)), "/"),
		APIBaseURL:              strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIBaseURL)), "/"),
		SecretKey:               v.GetString(KeySecretKey),
	}
	if err := validator.New().Struct(s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
