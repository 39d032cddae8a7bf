package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-scene-kit/pkg/domain"
	"github.com/shouni/go-scene-kit/pkg/loader"
)

// CheckFailure は読み込めなかった画像1件分の結果です。
type CheckFailure struct {
	Ref string
	Err error
}

// CheckReport はシーンリスト全体の検査結果です。
type CheckReport struct {
	Checked  int
	Failures []CheckFailure
}

// OK はすべての画像を読み込めたかどうかを返します。
func (r CheckReport) OK() bool {
	return len(r.Failures) == 0
}

// CheckRunner はシーンリストのすべての画像を実際に読み込み、壊れたものを洗い出す実行実体なのだ。
type CheckRunner struct {
	loader      loader.Loader
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
}

// NewCheckRunner は依存関係を注入して初期化します。limiter が nil なら流量制限はかけません。
func NewCheckRunner(l loader.Loader, limiter *rate.Limiter, concurrency int, logger *slog.Logger) (*CheckRunner, error) {
	if l == nil {
		return nil, fmt.Errorf("loader は必須です")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckRunner{
		loader:      l,
		limiter:     limiter,
		concurrency: concurrency,
		logger:      logger.With("component", "check"),
	}, nil
}

// Run は重複を除いたすべての参照先を並列に読み込みます。
// 個々の読み込み失敗は CheckReport に集め、error はキャンセルなど検査自体が続けられない場合だけ返します。
func (cr *CheckRunner) Run(ctx context.Context, scenes domain.Scenes) (CheckReport, error) {
	refs := scenes.UniqueRefs()
	cr.logger.InfoContext(ctx, "画像の検査を開始するのだ", "scenes", len(scenes), "unique", len(refs))

	var (
		mu       sync.Mutex
		failures []CheckFailure
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cr.concurrency)

	for _, ref := range refs {
		eg.Go(func() error {
			if cr.limiter != nil {
				if err := cr.limiter.Wait(egCtx); err != nil {
					return err
				}
			}

			h := cr.loader.Load(egCtx, ref)
			select {
			case <-h.Done():
			case <-egCtx.Done():
				return egCtx.Err()
			}
			if err := h.Err(); err != nil {
				cr.logger.Warn("画像を読み込めなかったのだ", "ref", ref, "error", err)
				mu.Lock()
				failures = append(failures, CheckFailure{Ref: ref, Err: err})
				mu.Unlock()
				return nil
			}
			cr.logger.Debug("画像を確認したのだ", "ref", ref)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return CheckReport{}, fmt.Errorf("画像の検査が中断されました: %w", err)
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Ref < failures[j].Ref })
	report := CheckReport{Checked: len(refs), Failures: failures}
	cr.logger.InfoContext(ctx, "画像の検査が完了したのだ", "checked", report.Checked, "failed", len(report.Failures))
	return report, nil
}
