package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.DocStore.Driver)
	assert.Equal(t, "local", cfg.Realtime.Driver)
	assert.Equal(t, "local", cfg.Auth.Provider)
	assert.Equal(t, time.Hour, cfg.Auth.JWT.ExpiresIn)
	assert.Equal(t, 30*time.Minute, cfg.Auth.JWT.ResetExpiresIn)
	assert.False(t, cfg.Auth.Google.Enabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DOCSTORE_DRIVER", "sql")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REALTIME_DRIVER", "postgres")
	t.Setenv("APP_TIMEZONE", "Europe/Berlin")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sql", cfg.DocStore.Driver)
	assert.Equal(t, "postgres", cfg.Realtime.Driver)
	assert.True(t, cfg.Auth.Google.Enabled())

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "should reject the default JWT secret for the local provider",
			env:  map[string]string{},
		},
		{
			name: "should require an API key for firebase",
			env:  map[string]string{"AUTH_PROVIDER": "firebase"},
		},
		{
			name: "should reject postgres notifications without postgres",
			env:  map[string]string{"JWT_SECRET": "s", "REALTIME_DRIVER": "postgres", "DB_DRIVER": "sqlite"},
		},
		{
			name: "should reject unknown docstore drivers",
			env:  map[string]string{"JWT_SECRET": "s", "DOCSTORE_DRIVER": "mongo"},
		},
		{
			name: "should reject unknown timezones",
			env:  map[string]string{"JWT_SECRET": "s", "APP_TIMEZONE": "Mars/Olympus"},
		},
		{
			name: "should reject out of range ports",
			env:  map[string]string{"JWT_SECRET": "s", "SERVER_PORT": "70000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.GetDSN())

	lite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/t.db"}
	assert.Contains(t, lite.GetDSN(), "file:/tmp/t.db?")
}
