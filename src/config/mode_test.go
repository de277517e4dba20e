package config

import (
	"os"
	"testing"
)

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name       string
		configMode string
		envVars    map[string]string
		want       Mode
	}{
		{
			name:       "config development",
			configMode: "development",
			want:       ModeDevelopment,
		},
		{
			name:       "config dev",
			configMode: "dev",
			want:       ModeDevelopment,
		},
		{
			name:       "config production",
			configMode: "production",
			want:       ModeProduction,
		},
		{
			name:       "config prod",
			configMode: " PROD ",
			want:       ModeProduction,
		},
		{
			name:       "config test",
			configMode: "testing",
			want:       ModeTest,
		},
		{
			name:       "empty defaults to production",
			configMode: "",
			want:       ModeProduction,
		},
		{
			name:       "env MODE development",
			configMode: "",
			envVars:    map[string]string{"MODE": "development"},
			want:       ModeDevelopment,
		},
		{
			name:       "env APP_ENV dev",
			configMode: "",
			envVars:    map[string]string{"APP_ENV": "dev"},
			want:       ModeDevelopment,
		},
		{
			name:       "unknown config falls back to env",
			configMode: "staging",
			envVars:    map[string]string{"MODE": "test"},
			want:       ModeTest,
		},
		{
			name:       "config takes precedence over env",
			configMode: "production",
			envVars:    map[string]string{"MODE": "development"},
			want:       ModeProduction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear env vars
			os.Unsetenv("MODE")
			os.Unsetenv("APP_MODE")
			os.Unsetenv("APP_ENV")

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			got := DetectMode(tt.configMode)
			if got != tt.want {
				t.Errorf("DetectMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModeGinMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeDevelopment, "debug"},
		{ModeTest, "test"},
		{ModeProduction, "release"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			if got := tt.mode.GinMode(); got != tt.want {
				t.Errorf("GinMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"yes", true},
		{"TRUE", true},
		{" on ", true},
		{"enabled", true},
		{"0", false},
		{"no", false},
		{"false", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsTruthy(tt.value); got != tt.want {
				t.Errorf("IsTruthy(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
