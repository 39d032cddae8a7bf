package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Navigator はナビゲーション入力の送り先です。sequencer.Sequencer が実装します。
type Navigator interface {
	Show(delta int)
	RequestIndex(idx int)
	Len() int
	WaitIdle(ctx context.Context) error
}

// ViewRunner はテキストのナビゲーション入力を読み、シーケンサーを操作する実行実体なのだ。
type ViewRunner struct {
	nav          Navigator
	drainTimeout time.Duration
	logger       *slog.Logger
}

// NewViewRunner は依存関係を注入して初期化します。
// drainTimeout は入力の終わりで表示の確定を待つ上限です。0 以下なら待ちません。
func NewViewRunner(nav Navigator, drainTimeout time.Duration, logger *slog.Logger) (*ViewRunner, error) {
	if nav == nil {
		return nil, fmt.Errorf("navigator は必須です")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewRunner{nav: nav, drainTimeout: drainTimeout, logger: logger.With("component", "view")}, nil
}

// Run は in から1行ずつコマンドを読み、終了コマンドか入力の終わりまで処理します。
// 入力の終わりでは、最後の要求が表示に確定するまで drainTimeout を上限に待ちます。
// 不明なコマンドは警告を出して読み飛ばします。
func (r *ViewRunner) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("ナビゲーション入力の読み込みに失敗しました: %w", err)
					}
				default:
				}
				r.drain(ctx)
				return nil
			}
			if quit := r.dispatch(line); quit {
				return nil
			}
		}
	}
}

// drain は待機中の差し替えが確定するまで待つのだ。
// パイプで渡した入力が尽きても、最後の画像を出し切ってから終わるためなのだ。
func (r *ViewRunner) drain(ctx context.Context) {
	if r.drainTimeout <= 0 {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, r.drainTimeout)
	defer cancel()

	if err := r.nav.WaitIdle(waitCtx); err != nil && ctx.Err() == nil {
		r.logger.Warn("表示の確定を待ちきれずに終了するのだ", "timeout", r.drainTimeout, "error", err)
	}
}

// dispatch は1行分のコマンドを実行し、終了すべきなら true を返すのだ。
func (r *ViewRunner) dispatch(line string) bool {
	cmd, err := ParseCommand(line)
	if err != nil {
		r.logger.Warn("コマンドを無視したのだ", "error", err)
		return false
	}

	switch cmd.Action {
	case ActionNext:
		r.nav.Show(+1)
	case ActionPrev:
		r.nav.Show(-1)
	case ActionJump:
		r.nav.RequestIndex(cmd.Index)
	case ActionFirst:
		r.nav.RequestIndex(0)
	case ActionLast:
		r.nav.RequestIndex(r.nav.Len() - 1)
	case ActionQuit:
		return true
	}
	return false
}
