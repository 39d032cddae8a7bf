// Package prefetch は、次に表示されそうな画像を前もって温めておくキャッシュを提供します。
//
// 温める処理はすべて助言的なもので、失敗しても呼び出し元には伝えません。
// WarmAround は実際の処理を schedule.Scheduler に委ね、前景の処理と競合しないようにします。
package prefetch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/shouni/go-scene-kit/pkg/domain"
	"github.com/shouni/go-scene-kit/pkg/loader"
	"github.com/shouni/go-scene-kit/pkg/schedule"
)

// DefaultDeadline は WarmAround の遅延実行が待つ最大時間です。
const DefaultDeadline = 300 * time.Millisecond

// SceneSource は添字でシーンを引ける読み取り専用のシーン列です。store.Store が実装します。
type SceneSource interface {
	Get(index int) domain.Scene
	Len() int
}

// Options は Cache の動作設定です。
type Options struct {
	Deadline time.Duration // WarmAround の遅延の上限。0 なら DefaultDeadline
	EntryTTL time.Duration // 0 ならエントリを破棄しない
	Limiter  *rate.Limiter // nil なら読み込み開始を制限しない
	Logger   *slog.Logger
}

// entry は1つの参照先に対する温め処理です。handle は読み込み開始時に設定されます。
type entry struct {
	ref    string
	handle atomic.Pointer[loader.Handle]
}

// Cache は温め済み（または温め中）の画像を参照先ごとに1つだけ保持します。
type Cache struct {
	loader   loader.Loader
	sched    schedule.Scheduler
	entries  *cache.Cache
	limiter  *rate.Limiter
	deadline time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// New は Cache を生成します。
func New(l loader.Loader, sched schedule.Scheduler, opts Options) *Cache {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ttl, cleanup := cache.NoExpiration, time.Duration(0)
	if opts.EntryTTL > 0 {
		ttl, cleanup = opts.EntryTTL, opts.EntryTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		loader:   l,
		sched:    sched,
		entries:  cache.New(ttl, cleanup),
		limiter:  opts.Limiter,
		deadline: opts.Deadline,
		logger:   opts.Logger.With("component", "prefetch"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Warm は ref の読み込みを開始します。すでにエントリがある場合（読み込み中・完了済みとも）は何もしません。
func (c *Cache) Warm(ref string) {
	if ref == "" || c.closed.Load() {
		return
	}
	e := &entry{ref: ref}
	// Add は既存の（期限切れでない）キーに対してエラーを返すので、挿入自体が冪等になる。
	if err := c.entries.Add(ref, e, cache.DefaultExpiration); err != nil {
		return
	}

	if c.limiter == nil {
		c.start(e)
		return
	}
	go func() {
		if err := c.limiter.Wait(c.ctx); err != nil {
			c.logger.Debug("Warm cancelled before start", "ref", ref, "error", err)
			return
		}
		c.start(e)
	}()
}

func (c *Cache) start(e *entry) {
	h := c.loader.Load(c.ctx, e.ref)
	e.handle.Store(h)
	c.logger.Debug("Warming image", "ref", e.ref)

	go func() {
		select {
		case <-h.Done():
			if err := h.Err(); err != nil {
				c.logger.Debug("Warm failed", "ref", e.ref, "error", err)
			}
		case <-c.ctx.Done():
		}
	}()
}

// WarmAround は index の次（必須）、次の次、前のシーンを、この優先順で温めます。
// 実際の処理はスケジューラに委ねるため、呼び出し元をブロックしません。
func (c *Cache) WarmAround(index int, scenes SceneSource) {
	refs := Neighbors(index, scenes)
	if len(refs) == 0 || c.closed.Load() {
		return
	}
	c.sched.Defer(func() {
		for _, ref := range refs {
			c.Warm(ref)
		}
	}, c.deadline)
}

// Neighbors は温める対象の参照先を優先順（次、次の次、前）に返します。範囲外は含みません。
func Neighbors(index int, scenes SceneSource) []string {
	n := scenes.Len()
	refs := make([]string, 0, 3)
	for _, i := range []int{index + 1, index + 2, index - 1} {
		if i >= 0 && i < n {
			refs = append(refs, scenes.Get(i).Ref)
		}
	}
	return refs
}

// Contains は ref のエントリが存在するかどうかを返します。
func (c *Cache) Contains(ref string) bool {
	_, ok := c.entries.Get(ref)
	return ok
}

// Warmed は ref の読み込みがエラーなく完了しているかどうかを返します。
func (c *Cache) Warmed(ref string) bool {
	v, ok := c.entries.Get(ref)
	if !ok {
		return false
	}
	h := v.(*entry).handle.Load()
	return h != nil && h.Settled() && h.Err() == nil
}

// Len はエントリ数を返します。
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}

// Close は読み込み中の温め処理を取り消し、以降の Warm を無効にします。
func (c *Cache) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.cancel()
	c.logger.Debug("Prefetch cache closed", "entries", c.Len())
}
