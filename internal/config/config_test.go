package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("APP_PORT")
	os.Unsetenv("DATABASE_DSN")
	os.Unsetenv("APP_ENV")
	os.Unsetenv("SESSION_TTL_MIN_SECONDS")
	os.Unsetenv("SESSION_TTL_MAX_SECONDS")
	os.Unsetenv("SESSION_TTL_DEFAULT_SECONDS")
	os.Unsetenv("MAX_FILE_KB")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if cfg.TTLMinSeconds != 60 {
		t.Errorf("Load() TTLMinSeconds = %v, want 60", cfg.TTLMinSeconds)
	}
	if cfg.TTLMaxSeconds != 3600 {
		t.Errorf("Load() TTLMaxSeconds = %v, want 3600", cfg.TTLMaxSeconds)
	}
	if cfg.TTLDefaultSeconds != 900 {
		t.Errorf("Load() TTLDefaultSeconds = %v, want 900", cfg.TTLDefaultSeconds)
	}
	if cfg.MaxFileKB != 200 {
		t.Errorf("Load() MaxFileKB = %v, want 200", cfg.MaxFileKB)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	os.Setenv("APP_PORT", "9090")
	os.Setenv("DATABASE_DSN", "host=db user=clip dbname=clip")
	os.Setenv("APP_ENV", "prod")
	os.Setenv("SESSION_TTL_MIN_SECONDS", "30")
	os.Setenv("SESSION_TTL_MAX_SECONDS", "7200")
	os.Setenv("MAX_FILE_KB", "500")
	defer func() {
		os.Unsetenv("APP_PORT")
		os.Unsetenv("DATABASE_DSN")
		os.Unsetenv("APP_ENV")
		os.Unsetenv("SESSION_TTL_MIN_SECONDS")
		os.Unsetenv("SESSION_TTL_MAX_SECONDS")
		os.Unsetenv("MAX_FILE_KB")
	}()

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.DatabaseDSN != "host=db user=clip dbname=clip" {
		t.Errorf("Load() DatabaseDSN = %v, want host=db user=clip dbname=clip", cfg.DatabaseDSN)
	}
	if cfg.Env != "prod" {
		t.Errorf("Load() Env = %v, want prod", cfg.Env)
	}
	if cfg.TTLMinSeconds != 30 {
		t.Errorf("Load() TTLMinSeconds = %v, want 30", cfg.TTLMinSeconds)
	}
	if cfg.TTLMaxSeconds != 7200 {
		t.Errorf("Load() TTLMaxSeconds = %v, want 7200", cfg.TTLMaxSeconds)
	}
	if cfg.MaxFileKB != 500 {
		t.Errorf("Load() MaxFileKB = %v, want 500", cfg.MaxFileKB)
	}
}

func TestLoad_InvalidNumbers(t *testing.T) {
	os.Setenv("SESSION_TTL_MIN_SECONDS", "invalid")
	os.Setenv("MAX_FILE_KB", "-5")
	defer func() {
		os.Unsetenv("SESSION_TTL_MIN_SECONDS")
		os.Unsetenv("MAX_FILE_KB")
	}()

	cfg := Load()

	if cfg.TTLMinSeconds != 60 {
		t.Errorf("Load() TTLMinSeconds = %v, want 60", cfg.TTLMinSeconds)
	}
	if cfg.MaxFileKB != 200 {
		t.Errorf("Load() MaxFileKB = %v, want 200", cfg.MaxFileKB)
	}
}

func TestLoad_InvertedTTLRange(t *testing.T) {
	os.Setenv("SESSION_TTL_MIN_SECONDS", "5000")
	os.Setenv("SESSION_TTL_MAX_SECONDS", "100")
	defer func() {
		os.Unsetenv("SESSION_TTL_MIN_SECONDS")
		os.Unsetenv("SESSION_TTL_MAX_SECONDS")
	}()

	cfg := Load()

	if cfg.TTLMinSeconds != 60 || cfg.TTLMaxSeconds != 3600 {
		t.Errorf("Load() TTL range = [%v, %v], want [60, 3600]", cfg.TTLMinSeconds, cfg.TTLMaxSeconds)
	}
}

func TestClampTTL(t *testing.T) {
	cfg := Config{TTLMinSeconds: 60, TTLMaxSeconds: 3600, TTLDefaultSeconds: 900}

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"below minimum", 10, 60},
		{"at minimum", 60, 60},
		{"in range", 1800, 1800},
		{"at maximum", 3600, 3600},
		{"above maximum", 86400, 3600},
		{"zero uses default", 0, 900},
		{"negative uses default", -1, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.ClampTTL(tt.in); got != tt.want {
				t.Errorf("ClampTTL(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
