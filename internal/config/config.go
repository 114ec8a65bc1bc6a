package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	AppOrigin              string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	RealtimeChannel        string
	AttachmentMaxSizeMB    int
	AttachmentsPerMessage  int
	SendRateLimit          int
	TypingTTL              time.Duration
	PresenceTTL            time.Duration
	StreamKeepAlive        time.Duration
	ReferralDiscountTTL    time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ReferralLink builds the shareable claim URL for a referral code.
func (c Config) ReferralLink(code string) string {
	return fmt.Sprintf("%s/referral/claim-discount?ref=%s", c.AppOrigin, code)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RENTORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Rentora API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.origin", "https://rentora.example.com")
	v.SetDefault("cloudinary.folder", "rentora/attachments")
	v.SetDefault("realtime.channel", "rentora")
	v.SetDefault("attachment.max_size_mb", 10)
	v.SetDefault("attachment.per_message", 5)
	v.SetDefault("rate.send_limit", 10)
	v.SetDefault("typing.ttl", "30s")
	v.SetDefault("presence.ttl", "5m")
	v.SetDefault("stream.keepalive", "30s")
	v.SetDefault("referral.discount_ttl", "720h")

	durations := map[string]*time.Duration{
		"typing.ttl":            new(time.Duration),
		"presence.ttl":          new(time.Duration),
		"stream.keepalive":      new(time.Duration),
		"referral.discount_ttl": new(time.Duration),
	}
	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AppOrigin:              strings.TrimRight(v.GetString("app.origin"), "/"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		AttachmentMaxSizeMB:    v.GetInt("attachment.max_size_mb"),
		AttachmentsPerMessage:  v.GetInt("attachment.per_message"),
		SendRateLimit:          v.GetInt("rate.send_limit"),
		TypingTTL:              *durations["typing.ttl"],
		PresenceTTL:            *durations["presence.ttl"],
		StreamKeepAlive:        *durations["stream.keepalive"],
		ReferralDiscountTTL:    *durations["referral.discount_ttl"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AttachmentMaxSizeMB <= 0 {
		cfg.AttachmentMaxSizeMB = 10
	}

	if cfg.AttachmentsPerMessage <= 0 {
		cfg.AttachmentsPerMessage = 5
	}

	return cfg, nil
}
