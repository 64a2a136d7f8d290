package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repositorytools/repositorytools/pkg/config"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`url: https://file.example.com
user: file-user
password: file-password
timeout: 30s
autoDropAfterRelease: false
`), 0600))

	tests := []struct {
		name     string
		explicit config.Config
		path     string
		env      map[string]string
		want     config.Config
	}{
		{
			name: "defaults",
			want: config.Config{
				URL:                  config.DefaultURL,
				StagingURL:           config.DefaultURL,
				AutoDropAfterRelease: lo.ToPtr(true),
			},
		},
		{
			name: "environment",
			env: map[string]string{
				config.EnvURL:        "https://env.example.com",
				config.EnvStagingURL: "https://staging.example.com",
				config.EnvUser:       "env-user",
				config.EnvPassword:   "env-password",
			},
			want: config.Config{
				URL:                  "https://env.example.com",
				StagingURL:           "https://staging.example.com",
				User:                 "env-user",
				Password:             "env-password",
				AutoDropAfterRelease: lo.ToPtr(true),
			},
		},
		{
			name:     "explicit beats environment",
			explicit: config.Config{URL: "https://flag.example.com", User: "flag-user", Password: "flag-password"},
			env: map[string]string{
				config.EnvURL:      "https://env.example.com",
				config.EnvUser:     "env-user",
				config.EnvPassword: "env-password",
			},
			want: config.Config{
				URL:                  "https://flag.example.com",
				StagingURL:           "https://flag.example.com",
				User:                 "flag-user",
				Password:             "flag-password",
				AutoDropAfterRelease: lo.ToPtr(true),
			},
		},
		{
			name: "environment beats config file",
			path: file,
			env:  map[string]string{config.EnvUser: "env-user"},
			want: config.Config{
				URL:                  "https://file.example.com",
				StagingURL:           "https://file.example.com",
				User:                 "env-user",
				Password:             "file-password",
				Timeout:              30 * time.Second,
				AutoDropAfterRelease: lo.ToPtr(false),
			},
		},
		{
			name: "missing config file",
			path: filepath.Join(dir, "missing.yaml"),
			want: config.Config{
				URL:                  config.DefaultURL,
				StagingURL:           config.DefaultURL,
				AutoDropAfterRelease: lo.ToPtr(true),
			},
		},
		{
			name:     "password without user is dropped",
			explicit: config.Config{Password: "secret"},
			want: config.Config{
				URL:                  config.DefaultURL,
				StagingURL:           config.DefaultURL,
				AutoDropAfterRelease: lo.ToPtr(true),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.Load(tt.explicit, tt.path, func(key string) string {
				return tt.env[key]
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("url: [unterminated"), 0600))

	_, err := config.Load(config.Config{}, file, func(string) string { return "" })
	require.Error(t, err)
}

func TestConfig_AutoDrop(t *testing.T) {
	assert.True(t, config.Config{}.AutoDrop())
	assert.False(t, config.Config{AutoDropAfterRelease: lo.ToPtr(false)}.AutoDrop())
}
