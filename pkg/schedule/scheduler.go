// Package schedule は、急ぎでない処理を前景の処理が空くまで遅らせる仕組みを提供します。
// 遅延には期限があり、期限を過ぎた処理は前景が忙しくても実行されます。
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler は急ぎでない処理を遅延実行します。Defer は呼び出し元をブロックしません。
type Scheduler interface {
	Defer(fn func(), deadline time.Duration)
}

// Activity は前景の処理の開始を記録し、終了時に呼ぶ関数を返します。
type Activity interface {
	Begin() (end func())
}

// TickScheduler はアイドル判定を持たない環境向けのフォールバックで、
// 次のティックで処理を実行します。
type TickScheduler struct{}

// Defer は fn を別ゴルーチンで即座に実行します。deadline は使いません。
func (TickScheduler) Defer(fn func(), _ time.Duration) {
	time.AfterFunc(0, fn)
}

type job struct {
	fn  func()
	due time.Time
}

// IdleScheduler は、前景の処理（Begin で開始された処理）が1件もないときに
// 遅延処理を実行します。期限を過ぎた処理は前景の状態に関係なく実行します。
// Run を呼び出すまで処理は実行されません。
type IdleScheduler struct {
	mu     sync.Mutex
	busy   int
	queue  []job
	wake   chan struct{}
	logger *slog.Logger
}

// NewIdleScheduler は IdleScheduler を生成します。
func NewIdleScheduler(logger *slog.Logger) *IdleScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdleScheduler{
		wake:   make(chan struct{}, 1),
		logger: logger.With("component", "schedule"),
	}
}

// Defer は fn をキューに追加します。
func (s *IdleScheduler) Defer(fn func(), deadline time.Duration) {
	s.mu.Lock()
	s.queue = append(s.queue, job{fn: fn, due: time.Now().Add(deadline)})
	s.mu.Unlock()
	s.signal()
}

// Begin は前景の処理を1件開始します。返された関数で終了を通知します（2回目以降は無視）。
func (s *IdleScheduler) Begin() func() {
	s.mu.Lock()
	s.busy++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy--
			s.mu.Unlock()
			s.signal()
		})
	}
}

// Idle は前景の処理がないかどうかを返します。
func (s *IdleScheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy == 0
}

// Pending は未実行の処理の数を返します。
func (s *IdleScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *IdleScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run は ctx が終了するまで遅延処理を実行し続けます。
func (s *IdleScheduler) Run(ctx context.Context) error {
	s.logger.Debug("Idle scheduler started")
	for {
		ready, next := s.takeReady(time.Now())
		for _, j := range ready {
			j.fn()
		}
		if len(ready) > 0 {
			continue
		}

		var timer *time.Timer
		var timeout <-chan time.Time
		if !next.IsZero() {
			timer = time.NewTimer(time.Until(next))
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Debug("Idle scheduler stopped", "pending", s.Pending())
			return nil
		case <-s.wake:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// takeReady は実行可能な処理をキューから取り出し、残りの処理の最も早い期限を返します。
func (s *IdleScheduler) takeReady(now time.Time) (ready []job, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idle := s.busy == 0
	rest := s.queue[:0]
	for _, j := range s.queue {
		if idle || !now.Before(j.due) {
			ready = append(ready, j)
			continue
		}
		rest = append(rest, j)
		if next.IsZero() || j.due.Before(next) {
			next = j.due
		}
	}
	clear(s.queue[len(rest):])
	s.queue = rest
	return ready, next
}
