package config

import (
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("デフォルト設定が不正です: %v", err)
	}
	if cfg.PrefetchDeadline != 300*time.Millisecond {
		t.Errorf("PrefetchDeadline = %s, want 300ms", cfg.PrefetchDeadline)
	}
	if cfg.FetchAllowPrivate {
		t.Error("プライベートアドレスへの取得はデフォルトで無効であるべきです")
	}
	if cfg.EntryTTL != 0 {
		t.Errorf("EntryTTL のデフォルトは 0（破棄なし）であるべきです: %s", cfg.EntryTTL)
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("環境変数で上書きできること", func(t *testing.T) {
		t.Setenv("SCENE_PREFETCH_DEADLINE", "150ms")
		t.Setenv("SCENE_DECODE_MODE", "event")
		t.Setenv("SCENE_WARM_BURST", "5")
		t.Setenv("SCENE_FETCH_MAX_RETRIES", "1")
		t.Setenv("SCENE_FETCH_ALLOW_PRIVATE", "true")

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv() error = %v", err)
		}
		if cfg.PrefetchDeadline != 150*time.Millisecond {
			t.Errorf("PrefetchDeadline = %s, want 150ms", cfg.PrefetchDeadline)
		}
		if cfg.DecodeMode != DecodeModeEvent {
			t.Errorf("DecodeMode = %q, want %q", cfg.DecodeMode, DecodeModeEvent)
		}
		if cfg.WarmBurst != 5 {
			t.Errorf("WarmBurst = %d, want 5", cfg.WarmBurst)
		}
		if cfg.FetchMaxRetries != 1 || !cfg.FetchAllowPrivate {
			t.Errorf("取得設定が反映されていません: retries=%d, allowPrivate=%t", cfg.FetchMaxRetries, cfg.FetchAllowPrivate)
		}
		if cfg.FetchTimeout != DefaultFetchTimeout {
			t.Errorf("未設定の項目はデフォルトのままであるべきです: %s", cfg.FetchTimeout)
		}
	})

	t.Run("不正な値はエラーになること", func(t *testing.T) {
		t.Setenv("SCENE_SCHEDULER", "realtime")
		if _, err := FromEnv(); err == nil {
			t.Error("エラーが返りませんでした")
		}
	})

	t.Run("パースできない値はエラーになること", func(t *testing.T) {
		t.Setenv("SCENE_FETCH_TIMEOUT", "soon")
		if _, err := FromEnv(); err == nil {
			t.Error("エラーが返りませんでした")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"deadline 0":      func(c *Config) { c.PrefetchDeadline = 0 },
		"burst 0":         func(c *Config) { c.WarmBurst = 0 },
		"負の TTL":          func(c *Config) { c.EntryTTL = -time.Second },
		"max bytes 0":     func(c *Config) { c.FetchMaxBytes = 0 },
		"retries 0":       func(c *Config) { c.FetchMaxRetries = 0 },
		"interval 0":      func(c *Config) { c.FetchRetryInterval = 0 },
		"未知の decode mode": func(c *Config) { c.DecodeMode = "lazy" },
		"並列数 0":           func(c *Config) { c.CheckConcurrency = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("エラーが返りませんでした")
			}
		})
	}
}
