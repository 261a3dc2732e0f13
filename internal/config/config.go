package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Relay backends supported for cross-node fan-out.
const (
	RelayNone  = "none"
	RelayRedis = "redis"
	RelayNATS  = "nats"
)

// MinKeepAlive is the shortest keepalive interval accepted for realtime connections.
const MinKeepAlive = time.Second

// Config holds runtime configuration values for the realtime service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	RealtimeRelay     string
	ChannelBase       string
	SendBufferSize    int
	KeepAliveInterval time.Duration
	UnreadCacheTTL    time.Duration
	ChatRateLimit     int
	ChatRateWindow    time.Duration
	SeedEnabled       bool
	SeedToken         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PHARMACY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Pharmacy Realtime API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("realtime.relay", RelayNone)
	v.SetDefault("realtime.channel_base", "pharmacy")
	v.SetDefault("realtime.send_buffer", 32)
	v.SetDefault("realtime.keepalive", "30s")
	v.SetDefault("chat.unread_cache_ttl", "2m")
	v.SetDefault("chat.rate_limit", 20)
	v.SetDefault("chat.rate_window", "10s")
	v.SetDefault("seed.enabled", false)

	keepAlive, err := parseDuration(v, "realtime.keepalive", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid realtime keepalive: %w", err)
	}
	if keepAlive < MinKeepAlive {
		keepAlive = MinKeepAlive
	}

	unreadTTL, err := parseDuration(v, "chat.unread_cache_ttl", 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid unread cache ttl: %w", err)
	}

	rateWindow, err := parseDuration(v, "chat.rate_window", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid chat rate window: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		RealtimeRelay:     strings.ToLower(strings.TrimSpace(v.GetString("realtime.relay"))),
		ChannelBase:       v.GetString("realtime.channel_base"),
		SendBufferSize:    v.GetInt("realtime.send_buffer"),
		KeepAliveInterval: keepAlive,
		UnreadCacheTTL:    unreadTTL,
		ChatRateLimit:     v.GetInt("chat.rate_limit"),
		ChatRateWindow:    rateWindow,
		SeedEnabled:       v.GetBool("seed.enabled"),
		SeedToken:         v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.RealtimeRelay {
	case "", RelayNone:
		cfg.RealtimeRelay = RelayNone
	case RelayRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis relay requires redis url")
		}
	case RelayNATS:
		if cfg.NATSURL == "" {
			return Config{}, fmt.Errorf("nats relay requires nats url")
		}
	default:
		return Config{}, fmt.Errorf("unsupported realtime relay %q", cfg.RealtimeRelay)
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 32
	}

	if cfg.ChatRateLimit <= 0 {
		cfg.ChatRateLimit = 20
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}
