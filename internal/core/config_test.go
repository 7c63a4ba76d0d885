package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: "15s"
logging:
  level: debug
  console: true
reminders:
  default_timezone: "Pacific/Auckland"
  max_per_user: 10
plugins:
  remind:
    enabled: true
    config: {"cleanup_interval": "1h"}
`)

	m := NewConfigManager(path)
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.PollTimeout != "15s" {
		t.Fatalf("telegram section mismatch: %+v", cfg.Telegram)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("owners = %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Reminders.DefaultTimezone != "Pacific/Auckland" || cfg.Reminders.MaxPerUser != 10 {
		t.Fatalf("reminders section mismatch: %+v", cfg.Reminders)
	}
	p, ok := cfg.Plugins["remind"]
	if !ok || !p.Enabled || len(p.Config) == 0 {
		t.Fatalf("plugin section mismatch: %+v", cfg.Plugins)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get returned a different config")
	}
}

func TestConfigLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  legacy_api_key: "nope"
`)
	if _, err := NewConfigManager(path).Load(context.Background()); err == nil {
		t.Fatalf("unknown field accepted")
	}
}

func TestConfigValidatorRejectsCandidate(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
`)
	m := NewConfigManager(path)
	first, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("initial Load: %v", err)
	}

	boom := errors.New("boom")
	m.SetValidator(func(context.Context, *Config) error { return boom })
	if _, err := m.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("validator bypass: err = %v", err)
	}
	// The committed config must be untouched by the rejected reload.
	if m.Get() != first {
		t.Fatalf("rejected reload replaced the committed config")
	}
}

func TestDurationSetting(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{"", 10 * time.Second, 10 * time.Second, false},
		{"  ", time.Minute, time.Minute, false},
		{"0s", time.Minute, time.Minute, false},
		{"15s", 10 * time.Second, 15 * time.Second, false},
		{"2h45m", 0, 2*time.Hour + 45*time.Minute, false},
		{"-5s", 0, 0, true},
		{"fast", 0, 0, true},
	}
	for _, tc := range cases {
		got, err := durationSetting("test.key", tc.raw, tc.def)
		if tc.wantErr {
			if err == nil {
				t.Errorf("durationSetting(%q) accepted, want error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("durationSetting(%q, def=%v) = %v, %v; want %v", tc.raw, tc.def, got, err, tc.want)
		}
	}
}

func TestDecodePluginConfigStrict(t *testing.T) {
	t.Parallel()
	type pc struct {
		CleanupInterval string `json:"cleanup_interval"`
	}
	got, err := DecodePluginConfig[pc]([]byte(`{"cleanup_interval":"30m"}`))
	if err != nil || got.CleanupInterval != "30m" {
		t.Fatalf("decode: %+v, %v", got, err)
	}
	if _, err := DecodePluginConfig[pc]([]byte(`{"cleanupInterval":"30m"}`)); err == nil {
		t.Fatalf("unknown plugin config key accepted")
	}
	empty, err := DecodePluginConfig[pc](nil)
	if err != nil || empty.CleanupInterval != "" {
		t.Fatalf("nil raw: %+v, %v", empty, err)
	}
}
