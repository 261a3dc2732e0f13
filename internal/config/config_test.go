package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")

	cfg, err := load(v)
	require.NoError(t, err)
	require.Equal(t, "Pharmacy Realtime API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, RelayNone, cfg.RealtimeRelay)
	require.Equal(t, 32, cfg.SendBufferSize)
	require.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
	require.Equal(t, 2*time.Minute, cfg.UnreadCacheTTL)
	require.Equal(t, 20, cfg.ChatRateLimit)
	require.False(t, cfg.SeedEnabled)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	_, err := load(viper.New())
	require.Error(t, err)
}

func TestLoadRejectsRelayWithoutBackend(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("realtime.relay", "redis")

	_, err := load(v)
	require.ErrorContains(t, err, "redis relay requires redis url")

	v.Set("realtime.relay", "kafka")
	_, err = load(v)
	require.ErrorContains(t, err, "unsupported realtime relay")
}

func TestLoadParsesDurations(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("app.port", ":9090")
	v.Set("realtime.relay", "NATS")
	v.Set("nats.url", "nats://localhost:4222")
	v.Set("realtime.keepalive", "15s")
	v.Set("chat.rate_window", "bogus")

	_, err := load(v)
	require.ErrorContains(t, err, "invalid chat rate window")

	v.Set("chat.rate_window", "1m")
	cfg, err := load(v)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, RelayNATS, cfg.RealtimeRelay)
	require.Equal(t, 15*time.Second, cfg.KeepAliveInterval)
	require.Equal(t, time.Minute, cfg.ChatRateWindow)
}

func TestLoadClampsKeepAlive(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("realtime.keepalive", "1ns")

	cfg, err := load(v)
	require.NoError(t, err)
	require.Equal(t, MinKeepAlive, cfg.KeepAliveInterval)

	v.Set("realtime.keepalive", "500ms")
	cfg, err = load(v)
	require.NoError(t, err)
	require.Equal(t, MinKeepAlive, cfg.KeepAliveInterval)
}
