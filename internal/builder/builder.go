package builder

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/shouni/go-scene-kit/internal/config"

	sceneconfig "github.com/shouni/go-scene-kit/pkg/config"
	"github.com/shouni/go-scene-kit/pkg/fetch"
	"github.com/shouni/go-scene-kit/pkg/loader"
	"github.com/shouni/go-scene-kit/pkg/prefetch"
	"github.com/shouni/go-scene-kit/pkg/runner"
	"github.com/shouni/go-scene-kit/pkg/schedule"
	"github.com/shouni/go-scene-kit/pkg/sequencer"
	"github.com/shouni/go-scene-kit/pkg/store"
)

// BuildAppContext は取得層とローダーを初期化し、シーンリストを読み込みます。
// シーンリストを読み込めない場合は store.LoadError を返します。
func BuildAppContext(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*AppContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config は必須です")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Scene.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	fetchCfg := fetch.Config{
		Timeout:             cfg.Scene.FetchTimeout,
		MaxRetries:          cfg.Scene.FetchMaxRetries,
		RetryInterval:       cfg.Scene.FetchRetryInterval,
		AllowPrivateNetwork: cfg.Scene.FetchAllowPrivate,
		MaxBytes:            cfg.Scene.FetchMaxBytes,
		CacheTTL:            cfg.Scene.ByteCacheTTL,
		CacheCleanup:        cfg.Scene.ByteCacheCleanup,
		Logger:              logger,
	}
	httpClient := fetch.NewHTTPClient(fetchCfg)
	fetchCfg.Client = httpClient
	fetcher := fetch.New(fetchCfg)

	l, err := loader.New(cfg.Scene.DecodeMode, fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("ローダーの初期化に失敗しました: %w", err)
	}

	st, err := store.Load(ctx, fetcher, cfg.Source)
	if err != nil {
		return nil, err
	}

	appCtx := NewAppContext(cfg, httpClient, fetcher, l, st, logger)
	return &appCtx, nil
}

// Viewer は view コマンドで使うコンポーネント一式なのだ。
// IdleScheduler を使う場合、呼び出し側が Idle.Run を回す必要があるのだ。
type Viewer struct {
	Sequencer *sequencer.Sequencer
	Cache     *prefetch.Cache
	Runner    *runner.ViewRunner
	Idle      *schedule.IdleScheduler // SchedulerTick の場合は nil
}

// Close はシーケンサーと先読みキャッシュを停止するのだ。
func (v *Viewer) Close() {
	v.Sequencer.Close()
	v.Cache.Close()
}

// BuildViewer はスケジューラ・先読みキャッシュ・シーケンサー・ViewRunner を組み立てます。
func BuildViewer(appCtx *AppContext, position sequencer.PositionSink, transition sequencer.TransitionTrigger) (*Viewer, error) {
	cfg := appCtx.Config.Scene

	var (
		sched    schedule.Scheduler
		activity schedule.Activity
		idle     *schedule.IdleScheduler
	)
	switch cfg.Scheduler {
	case sceneconfig.SchedulerTick:
		sched = schedule.TickScheduler{}
	default:
		idle = schedule.NewIdleScheduler(appCtx.Logger)
		sched, activity = idle, idle
	}

	cache := prefetch.New(appCtx.Loader, sched, prefetch.Options{
		Deadline: cfg.PrefetchDeadline,
		EntryTTL: cfg.EntryTTL,
		Limiter:  newWarmLimiter(cfg),
		Logger:   appCtx.Logger,
	})

	seq, err := sequencer.New(appCtx.Store, appCtx.Loader, sequencer.Options{
		Position:   position,
		Transition: transition,
		Prefetcher: cache,
		Activity:   activity,
		Logger:     appCtx.Logger,
	})
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("シーケンサーの初期化に失敗しました: %w", err)
	}

	// 入力が尽きたときの確定待ちは、1枚の取得にかかりうる時間を上限にする
	vr, err := runner.NewViewRunner(seq, cfg.FetchTimeout, appCtx.Logger)
	if err != nil {
		seq.Close()
		cache.Close()
		return nil, err
	}

	return &Viewer{Sequencer: seq, Cache: cache, Runner: vr, Idle: idle}, nil
}

// BuildCheckRunner は全画像の検査を担当する Runner を構築します。
func BuildCheckRunner(appCtx *AppContext) (*runner.CheckRunner, error) {
	cfg := appCtx.Config.Scene
	return runner.NewCheckRunner(appCtx.Loader, newWarmLimiter(cfg), cfg.CheckConcurrency, appCtx.Logger)
}

// newWarmLimiter は読み込み開始の流量制限を作るのだ。間隔が 0 なら制限しないのだ。
func newWarmLimiter(cfg sceneconfig.Config) *rate.Limiter {
	if cfg.WarmInterval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(cfg.WarmInterval), cfg.WarmBurst)
}
