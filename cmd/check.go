package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-scene-kit/internal/builder"
)

// checkCmd は、シーンリストのすべての画像を読み込めるか検査するサブコマンドなのだ。
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "シーンリストのすべての画像を読み込めるか検査するのだ。",
	RunE:  checkCommand,
}

// checkCommand は、check サブコマンドの実行ロジック本体なのだ。
// 読み込めない画像が1枚でもあれば非ゼロで終了するのだ。
func checkCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := appCfg

	appCtx, err := builder.BuildAppContext(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	cr, err := builder.BuildCheckRunner(appCtx)
	if err != nil {
		return err
	}

	report, err := cr.Run(ctx, appCtx.Store.Scenes())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range report.Failures {
		fmt.Fprintf(out, "NG  %s: %v\n", f.Ref, f.Err)
	}
	fmt.Fprintf(out, "%d 枚中 %d 枚を読み込めたのだ\n", report.Checked, report.Checked-len(report.Failures))

	if !report.OK() {
		return fmt.Errorf("%d 枚の画像を読み込めませんでした", len(report.Failures))
	}
	return nil
}
