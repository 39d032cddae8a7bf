package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// デフォルト値の定義
const (
	DefaultPrefetchDeadline   = 300 * time.Millisecond
	DefaultFetchTimeout       = 30 * time.Second
	DefaultFetchMaxBytes      = 20 << 20
	DefaultFetchMaxRetries    = 3
	DefaultFetchRetryInterval = 1 * time.Second
	DefaultByteCacheTTL       = 30 * time.Minute
	DefaultByteCacheCleanup   = 1 * time.Hour
	DefaultWarmInterval       = 50 * time.Millisecond
	DefaultWarmBurst          = 3
	DefaultCheckConcurrency   = 4
	DefaultDecodeMode         = DecodeModeDecode
	DefaultSchedulerKind      = SchedulerIdle
	DefaultSceneListFileName  = "scenes.json"
)

// 画像読み込みのバックエンド
const (
	DecodeModeDecode = "decode" // 完全なデコードを待ってから確定する
	DecodeModeEvent  = "event"  // 読み込み完了/失敗のイベントで確定する
)

// 先読みの遅延実行方式
const (
	SchedulerIdle = "idle" // 前景の処理が空いた時点（または期限）で実行
	SchedulerTick = "tick" // 次のティックで実行
)

// Config は go-scene-kit の各コンポーネントを動作させるための基本設定です。
type Config struct {
	// --- Prefetch Settings ---
	PrefetchDeadline time.Duration `env:"SCENE_PREFETCH_DEADLINE"`
	WarmInterval     time.Duration `env:"SCENE_WARM_INTERVAL"`
	WarmBurst        int           `env:"SCENE_WARM_BURST"`
	EntryTTL         time.Duration `env:"SCENE_ENTRY_TTL"` // 0 なら先読みエントリを破棄しない
	Scheduler        string        `env:"SCENE_SCHEDULER"`

	// --- Fetch Settings ---
	FetchTimeout       time.Duration `env:"SCENE_FETCH_TIMEOUT"`
	FetchMaxBytes      int64         `env:"SCENE_FETCH_MAX_BYTES"`
	FetchMaxRetries    uint64        `env:"SCENE_FETCH_MAX_RETRIES"`
	FetchRetryInterval time.Duration `env:"SCENE_FETCH_RETRY_INTERVAL"`
	FetchAllowPrivate  bool          `env:"SCENE_FETCH_ALLOW_PRIVATE"` // ループバック/プライベートアドレスへの取得を許可する
	ByteCacheTTL       time.Duration `env:"SCENE_BYTE_CACHE_TTL"`
	ByteCacheCleanup   time.Duration `env:"SCENE_BYTE_CACHE_CLEANUP"`

	// --- Decode Settings ---
	DecodeMode string `env:"SCENE_DECODE_MODE"`

	// --- Check Settings ---
	CheckConcurrency int `env:"SCENE_CHECK_CONCURRENCY"`
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		PrefetchDeadline:   DefaultPrefetchDeadline,
		WarmInterval:       DefaultWarmInterval,
		WarmBurst:          DefaultWarmBurst,
		Scheduler:          DefaultSchedulerKind,
		FetchTimeout:       DefaultFetchTimeout,
		FetchMaxBytes:      DefaultFetchMaxBytes,
		FetchMaxRetries:    DefaultFetchMaxRetries,
		FetchRetryInterval: DefaultFetchRetryInterval,
		ByteCacheTTL:       DefaultByteCacheTTL,
		ByteCacheCleanup:   DefaultByteCacheCleanup,
		DecodeMode:         DefaultDecodeMode,
		CheckConcurrency:   DefaultCheckConcurrency,
	}
}

// FromEnv はデフォルト設定に環境変数の値を上書きした Config を返します。
// 環境変数に設定されていない項目はデフォルト値のまま残ります。
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("環境変数からの設定読み込みに失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証します。
func (c Config) Validate() error {
	switch {
	case c.PrefetchDeadline <= 0:
		return fmt.Errorf("PrefetchDeadline は正の値である必要があります: %s", c.PrefetchDeadline)
	case c.WarmBurst <= 0:
		return fmt.Errorf("WarmBurst は1以上である必要があります: %d", c.WarmBurst)
	case c.WarmInterval < 0:
		return fmt.Errorf("WarmInterval は負の値にできません: %s", c.WarmInterval)
	case c.EntryTTL < 0:
		return fmt.Errorf("EntryTTL は負の値にできません: %s", c.EntryTTL)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("FetchTimeout は正の値である必要があります: %s", c.FetchTimeout)
	case c.FetchMaxBytes <= 0:
		return fmt.Errorf("FetchMaxBytes は正の値である必要があります: %d", c.FetchMaxBytes)
	case c.FetchMaxRetries == 0:
		return fmt.Errorf("FetchMaxRetries は1以上である必要があります: %d", c.FetchMaxRetries)
	case c.FetchRetryInterval <= 0:
		return fmt.Errorf("FetchRetryInterval は正の値である必要があります: %s", c.FetchRetryInterval)
	case c.CheckConcurrency <= 0:
		return fmt.Errorf("CheckConcurrency は1以上である必要があります: %d", c.CheckConcurrency)
	}

	switch c.DecodeMode {
	case DecodeModeDecode, DecodeModeEvent:
	default:
		return fmt.Errorf("未対応の DecodeMode です: %q", c.DecodeMode)
	}
	switch c.Scheduler {
	case SchedulerIdle, SchedulerTick:
	default:
		return fmt.Errorf("未対応の Scheduler です: %q", c.Scheduler)
	}
	return nil
}
