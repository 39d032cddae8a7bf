package schedule

import (
	"context"
	"testing"
	"time"
)

func startScheduler(t *testing.T) *IdleScheduler {
	t.Helper()
	s := NewIdleScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func expectRun(t *testing.T, ch <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(within):
		t.Fatalf("%s 以内に実行されませんでした", within)
	}
}

func expectNotRun(t *testing.T, ch <-chan struct{}, during time.Duration) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("実行されるべきでないタイミングで実行されました")
	case <-time.After(during):
	}
}

func TestIdleScheduler(t *testing.T) {
	t.Run("アイドル中はすぐに実行されること", func(t *testing.T) {
		s := startScheduler(t)
		ran := make(chan struct{})
		s.Defer(func() { close(ran) }, time.Hour)
		expectRun(t, ran, time.Second)
	})

	t.Run("前景の処理中は終了まで待つこと", func(t *testing.T) {
		s := startScheduler(t)
		end := s.Begin()
		if s.Idle() {
			t.Fatal("Begin 後に Idle が true です")
		}

		ran := make(chan struct{})
		s.Defer(func() { close(ran) }, time.Hour)
		expectNotRun(t, ran, 50*time.Millisecond)
		if s.Pending() != 1 {
			t.Errorf("Pending() = %d, want 1", s.Pending())
		}

		end()
		end()
		expectRun(t, ran, time.Second)
		if !s.Idle() {
			t.Error("end を2回呼んだ後の Idle が false です")
		}
	})

	t.Run("期限を過ぎたら前景の処理中でも実行されること", func(t *testing.T) {
		s := startScheduler(t)
		defer s.Begin()()

		ran := make(chan struct{})
		start := time.Now()
		s.Defer(func() { close(ran) }, 30*time.Millisecond)
		expectRun(t, ran, time.Second)
		if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
			t.Errorf("期限前に実行されました: %s", elapsed)
		}
	})

	t.Run("登録順に実行されること", func(t *testing.T) {
		s := NewIdleScheduler(nil)
		var order []int
		for i := 1; i <= 3; i++ {
			i := i
			s.Defer(func() { order = append(order, i) }, time.Hour)
		}
		ready, _ := s.takeReady(time.Now())
		for _, j := range ready {
			j.fn()
		}
		if len(order) != 3 || order[0] != 1 || order[2] != 3 {
			t.Errorf("実行順 = %v, want [1 2 3]", order)
		}
	})
}

func TestTickScheduler(t *testing.T) {
	ran := make(chan struct{})
	TickScheduler{}.Defer(func() { close(ran) }, time.Hour)
	expectRun(t, ran, time.Second)
}
