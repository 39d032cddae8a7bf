package config

import (
	"log/slog"

	"github.com/shouni/go-utils/envutil"

	"github.com/shouni/go-scene-kit/pkg/config"
)

// デフォルト値の定義なのだ
const (
	DefaultSource   = config.DefaultSceneListFileName // シーンリストの既定の場所なのだ
	DefaultLogLevel = "info"
)

// Config は CLI 全体の設定を保持する構造体なのだ。
// Scene はシーケンサー・先読み・取得層の動作設定で、環境変数から読み込むのだ。
type Config struct {
	Source   string
	LogLevel string
	Scene    config.Config

	Options ViewOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() (*Config, error) {
	scene, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return &Config{
		Source:   envutil.GetEnv("SCENES_SOURCE", DefaultSource),
		LogLevel: envutil.GetEnv("SCENE_LOG_LEVEL", DefaultLogLevel),
		Scene:    scene,
	}, nil
}

// ViewOptions は CLI フラグから渡される実行時のパラメータなのだ。
type ViewOptions struct {
	Source     string // --source
	Verbose    bool   // --verbose / -V（clibase.Flags から受け取る）
	DecodeMode string // --decode-mode
	Scheduler  string // --scheduler
	StartAt    int    // --start: 1始まりの開始位置
}

// Apply はフラグで指定された値だけを設定に上書きするのだ。
func (c *Config) Apply(opts ViewOptions) {
	c.Options = opts
	if opts.Source != "" {
		c.Source = opts.Source
	}
	if opts.Verbose {
		c.LogLevel = "debug"
	}
	if opts.DecodeMode != "" {
		c.Scene.DecodeMode = opts.DecodeMode
	}
	if opts.Scheduler != "" {
		c.Scene.Scheduler = opts.Scheduler
	}
}

// Level はログレベルの文字列を slog.Level に変換するのだ。不明な値は Info なのだ。
func (c *Config) Level() slog.Level {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lv
}
