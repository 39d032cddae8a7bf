// Package sequencer は、現在表示しているシーンを管理し、画像の差し替えを駆動します。
//
// 差し替え要求のたびに世代トークンを1つ進め、デコード完了時に自分のトークンが
// 最新のままであるときだけ表示を確定させます。デコードの完了順が要求順と
// 入れ替わっても、最後に出された要求の結果以外が表示されることはありません。
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/go-scene-kit/pkg/domain"
	"github.com/shouni/go-scene-kit/pkg/loader"
	"github.com/shouni/go-scene-kit/pkg/prefetch"
	"github.com/shouni/go-scene-kit/pkg/schedule"
)

// Phase はシーケンサーの状態です。
type Phase int

const (
	// Idle は差し替え中のデコードがない状態です。
	Idle Phase = iota
	// Swapping は特定の世代のデコードを待っている状態です。
	Swapping
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Swapping:
		return "swapping"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Prefetcher は表示位置の周辺を温めます。prefetch.Cache が実装します。
type Prefetcher interface {
	WarmAround(index int, scenes prefetch.SceneSource)
}

type nopPrefetcher struct{}

func (nopPrefetcher) WarmAround(int, prefetch.SceneSource) {}

// Options はシーケンサーの協調者を指定します。すべて省略可能です。
type Options struct {
	Position   PositionSink
	Transition TransitionTrigger
	Prefetcher Prefetcher
	// Activity はデコード中を前景の処理として記録する先です（通常は schedule.IdleScheduler）。
	Activity schedule.Activity
	Logger   *slog.Logger
}

// Sequencer は現在の表示位置と世代トークンを保持します。
//
// 状態の変更と Position/Transition への通知はすべて内部のロックを保持したまま行われるため、
// 通知はトークン順に直列化されます。そのため通知先から同期的に Sequencer を呼び出してはいけません。
type Sequencer struct {
	mu sync.Mutex

	scenes     prefetch.SceneSource
	loader     loader.Loader
	prefetcher Prefetcher
	position   PositionSink
	transition TransitionTrigger
	activity   schedule.Activity
	logger     *slog.Logger

	current      int
	target       int
	displayedRef string
	displayed    bool
	token        uint64
	phase        Phase
	closed       bool

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	// settled はテスト用のフックで、デコード完了の処理後に呼ばれる。
	settled func(token uint64, committed bool)
}

// New は Sequencer を生成します。シーンが1件もない場合はエラーを返します。
func New(scenes prefetch.SceneSource, l loader.Loader, opts Options) (*Sequencer, error) {
	if scenes == nil {
		return nil, fmt.Errorf("scenes は必須です")
	}
	if l == nil {
		return nil, fmt.Errorf("loader は必須です")
	}
	if scenes.Len() == 0 {
		return nil, fmt.Errorf("シーンが1件もありません")
	}
	if opts.Position == nil {
		opts.Position = nopSink{}
	}
	if opts.Transition == nil {
		opts.Transition = nopSink{}
	}
	if opts.Prefetcher == nil {
		opts.Prefetcher = nopPrefetcher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sequencer{
		scenes:     scenes,
		loader:     l,
		prefetcher: opts.Prefetcher,
		position:   opts.Position,
		transition: opts.Transition,
		activity:   opts.Activity,
		logger:     opts.Logger.With("component", "sequencer"),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start は最初のシーンの表示を要求します。
func (s *Sequencer) Start() {
	s.RequestIndex(0)
}

// RequestIndex は idx のシーンへの切り替えを要求します。idx は [0, Len-1] に丸められます。
func (s *Sequencer) RequestIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request(idx)
}

// Show は直前に要求した位置から delta だけ移動します。
// 差し替え中でなければ、これは現在の表示位置からの移動と同じです。
func (s *Sequencer) Show(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request(s.target + delta)
}

func (s *Sequencer) request(idx int) {
	if s.closed {
		return
	}
	total := s.scenes.Len()
	i := Clamp(idx, total)
	scene := s.scenes.Get(i)
	s.target = i

	if s.displayed && scene.Ref == s.displayedRef {
		if s.phase == Swapping {
			// 表示中の画像に戻る要求なので、進行中の差し替えを古い世代にする
			s.token++
			s.phase = Idle
		}
		s.current = i
		s.position.ShowPosition(i, total, scene.Caption)
		s.prefetcher.WarmAround(i, s.scenes)
		return
	}

	s.token++
	token := s.token
	s.phase = Swapping
	s.logger.Debug("Swap requested", "index", i, "ref", scene.Ref, "token", token)

	end := func() {}
	if s.activity != nil {
		end = s.activity.Begin()
	}
	h := s.loader.Load(s.ctx, scene.Ref)

	s.inflight.Add(1)
	go s.await(token, i, scene, h, end)
}

func (s *Sequencer) await(token uint64, index int, scene domain.Scene, h *loader.Handle, end func()) {
	defer s.inflight.Done()
	defer end()

	select {
	case <-h.Done():
	case <-s.ctx.Done():
		return
	}
	s.commit(token, index, scene, h.Err())
}

// commit は token が最新のときだけ表示を確定させます。
// デコードの失敗は成功と同じように扱い、壊れた画像でも古い画像のまま止まらないようにします。
func (s *Sequencer) commit(token uint64, index int, scene domain.Scene, decodeErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	committed := false
	defer func() {
		if s.settled != nil {
			s.settled(token, committed)
		}
	}()

	if s.closed || token != s.token {
		s.logger.Debug("Discarded stale swap",
			"index", index, "token", token, "current_token", s.token, "error", decodeErr)
		return
	}
	if decodeErr != nil {
		s.logger.Warn("Image decode failed; committing anyway", "index", index, "ref", scene.Ref, "error", decodeErr)
	}

	s.current = index
	s.displayedRef = scene.Ref
	s.displayed = true
	s.phase = Idle
	committed = true

	s.position.ShowPosition(index, s.scenes.Len(), scene.Caption)
	s.transition.PlayTransition()
	s.prefetcher.WarmAround(index, s.scenes)
	s.logger.Debug("Swap committed", "index", index, "token", token)
}

// Current は表示中の位置とシーンを返します。
func (s *Sequencer) Current() (int, domain.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.scenes.Get(s.current)
}

// State は現在の状態と世代トークンを返します。
func (s *Sequencer) State() (Phase, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.token
}

// idlePollInterval は WaitIdle が状態を確認する間隔です。
const idlePollInterval = 10 * time.Millisecond

// WaitIdle は待機中の差し替えが確定して Idle に戻るまで待ちます。
// Close 済みの場合はすぐに nil を返し、ctx が先に終わった場合は ctx.Err() を返します。
func (s *Sequencer) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		done := s.closed || s.phase == Idle
		s.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Len はシーン数を返します。
func (s *Sequencer) Len() int {
	return s.scenes.Len()
}

// Close は待機中のデコードを打ち切ります。以降の要求と完了はすべて無視されます。
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.inflight.Wait()
}

// Clamp は idx を [0, total-1] に丸めます。
func Clamp(idx, total int) int {
	if idx < 0 || total <= 0 {
		return 0
	}
	if idx > total-1 {
		return total - 1
	}
	return idx
}
