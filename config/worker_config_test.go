package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONITORED_ADDRESSES", " Me@Example.com ,, jobs@example.com")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("MAIL_STORE", " Maildir ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"me@example.com", "jobs@example.com"}, cfg.MonitoredAddresses)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, MailStoreMaildir, cfg.MailStore)
	assert.InDelta(t, 0.6, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "me", cfg.Gmail.User)
}

func TestLoadRejectsBadValue(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "high")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ConfidenceThreshold: 0.6,
			MailStore:           MailStoreNotmuch,
			NotmuchBin:          "notmuch",
		}
	}

	tests := []struct {
		name    string
		mode    Mode
		mutate  func(*Config)
		wantErr string
	}{
		{"serve needs secret", ModeServe, func(c *Config) { c.SQLitePath = "x.db" }, "SYNC_SECRET"},
		{"serve needs storage", ModeServe, func(c *Config) { c.SyncSecret = "s" }, "DATABASE_URL or SQLITE_PATH"},
		{"serve ignores mail store", ModeServe, func(c *Config) {
			c.SyncSecret, c.SQLitePath, c.MailStore = "s", "x.db", "bogus"
		}, ""},
		{"run with sqlite", ModeRun, func(c *Config) { c.SQLitePath = "x.db" }, ""},
		{"run without sink", ModeRun, func(c *Config) {}, "REMOTE_SYNC_URL is required"},
		{"remote needs url", ModeRunRemote, func(c *Config) { c.SyncSecret = "s" }, "REMOTE_SYNC_URL is required"},
		{"remote needs secret", ModeRunRemote, func(c *Config) { c.RemoteSyncURL = "http://x" }, "SYNC_SECRET"},
		{"threshold range", ModeRun, func(c *Config) { c.SQLitePath, c.ConfidenceThreshold = "x.db", 1.5 }, "CONFIDENCE_THRESHOLD"},
		{"maildir path", ModeScanCorrections, func(c *Config) { c.SQLitePath, c.MailStore = "x.db", MailStoreMaildir }, "MAILDIR_PATH"},
		{"gmail creds", ModeRun, func(c *Config) { c.SQLitePath, c.MailStore = "x.db", MailStoreGmail }, "GMAIL_REFRESH_TOKEN"},
		{"unknown store", ModeRun, func(c *Config) { c.SQLitePath, c.MailStore = "x.db", "imap" }, `unknown MAIL_STORE "imap"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRemoteOnly(t *testing.T) {
	cfg := &Config{RemoteSyncURL: "http://x"}
	assert.True(t, cfg.RemoteOnly())
	cfg.SQLitePath = "x.db"
	assert.False(t, cfg.RemoteOnly())
}
