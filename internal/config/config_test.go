package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_TOKEN_DELIVERY", "")
	t.Setenv("AUTH_LOGIN_MAX_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DeliveryBody, cfg.Auth.Delivery)
	assert.Equal(t, "0.0.0.0:5000", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.NotEqual(t, cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret)
	assert.False(t, cfg.Auth.RotateRefresh)
	assert.Zero(t, cfg.Auth.LoginMaxAttempts, "login throttle is opt-in")
}

func TestLoad_ProductionDefaultsToCookieDelivery(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_ACCESS_SECRET", "prod-access")
	t.Setenv("AUTH_REFRESH_SECRET", "prod-refresh")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DeliveryCookie, cfg.Auth.Delivery)
	assert.True(t, cfg.App.IsProduction())
}

func TestLoad_ExplicitDeliveryOverridesEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_ACCESS_SECRET", "prod-access")
	t.Setenv("AUTH_REFRESH_SECRET", "prod-refresh")
	t.Setenv("AUTH_TOKEN_DELIVERY", "BODY")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DeliveryBody, cfg.Auth.Delivery)
}

func TestLoad_InvalidDelivery(t *testing.T) {
	t.Setenv("AUTH_TOKEN_DELIVERY", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TOKEN_DELIVERY")
}

func TestLoad_ProductionRejectsDevSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_ACCESS_SECRET", "")
	t.Setenv("AUTH_REFRESH_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthConfig
		env     string
		wantErr bool
	}{
		{name: "distinct secrets", auth: AuthConfig{AccessSecret: "a", RefreshSecret: "r"}},
		{name: "missing access", auth: AuthConfig{RefreshSecret: "r"}, wantErr: true},
		{name: "missing refresh", auth: AuthConfig{AccessSecret: "a"}, wantErr: true},
		{name: "equal secrets", auth: AuthConfig{AccessSecret: "s", RefreshSecret: "s"}, wantErr: true},
		{
			name:    "dev secret in production",
			auth:    AuthConfig{AccessSecret: devAccessSecret, RefreshSecret: "r"},
			env:     "production",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{App: AppConfig{Env: tt.env}, Auth: tt.auth}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseDeliveryMode(t *testing.T) {
	mode, err := ParseDeliveryMode(" Cookie ")
	require.NoError(t, err)
	assert.Equal(t, DeliveryCookie, mode)

	_, err = ParseDeliveryMode("")
	assert.Error(t, err)
}

func TestAuthConfig_Durations(t *testing.T) {
	assert.Equal(t, 15*time.Minute, AuthConfig{}.LoginWindow())
	assert.Equal(t, 5*time.Minute, AuthConfig{LoginWindowMinutes: 5}.LoginWindow())
	assert.Zero(t, AuthConfig{}.SweepInterval())
	assert.Equal(t, time.Hour, AuthConfig{SweepIntervalMinutes: 60}.SweepInterval())
}
