package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-scene-kit/internal/builder"
	"github.com/shouni/go-scene-kit/pkg/sequencer"
)

// viewCmd は、シーンリストを読み込んで標準入力のコマンドで画像を切り替えるサブコマンドなのだ。
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "シーンリストの画像を順番に表示するのだ。",
	Long: `シーンリストを読み込み、標準入力から1行ずつナビゲーションコマンドを受け取って画像を切り替えるのだ。
  n / l / right / 空行 : 次へ
  p / h / left         : 前へ
  数字                 : その番号（1始まり）へ
  first / last         : 最初 / 最後へ
  q / quit             : 終了`,
	RunE: viewCommand,
}

func init() {
	viewCmd.Flags().StringVar(&opts.Scheduler, "scheduler", "", "先読みの遅延実行方式（idle / tick）なのだ。")
	viewCmd.Flags().IntVar(&opts.StartAt, "start", 1, "最初に表示する番号（1始まり）なのだ。")
}

// viewCommand は、view サブコマンドの実行ロジック本体なのだ。
func viewCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := appCfg
	logger := slog.Default()

	appCtx, err := builder.BuildAppContext(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sink := &terminalSink{w: cmd.OutOrStdout()}
	viewer, err := builder.BuildViewer(appCtx, sink, sink)
	if err != nil {
		return err
	}
	defer viewer.Close()

	slog.Info("ビューアを起動するのだ！",
		"source", cfg.Source,
		"scenes", appCtx.Store.Len(),
		"decode_mode", cfg.Scene.DecodeMode,
		"scheduler", cfg.Scene.Scheduler)

	eg, egCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(egCtx)
	defer stop()

	if viewer.Idle != nil {
		eg.Go(func() error { return viewer.Idle.Run(runCtx) })
	}
	eg.Go(func() error {
		defer stop()
		viewer.Sequencer.Start()
		if opts.StartAt > 1 {
			viewer.Sequencer.RequestIndex(opts.StartAt - 1)
		}
		return viewer.Runner.Run(runCtx, cmd.InOrStdin())
	})

	return eg.Wait()
}

// terminalSink は位置表示と切り替えを端末に書き出すのだ。
// 呼び出しはシーケンサーのロックで直列化されているので、自前のロックは持たないのだ。
type terminalSink struct {
	w io.Writer
}

func (s *terminalSink) ShowPosition(index, total int, caption string) {
	fmt.Fprintf(s.w, "[%s] %s\n", sequencer.Badge(index, total), caption)
}

func (s *terminalSink) PlayTransition() {
	fmt.Fprintln(s.w, "  ~ 切り替え ~")
}
