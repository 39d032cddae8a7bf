package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-scene-kit/internal/config"
)

const appName = "scene-kit"

var (
	// opts は各サブコマンドで共有するフラグの値なのだ。
	opts config.ViewOptions
	// appCfg は preRunAppE で読み込んだ設定なのだ。
	appCfg *config.Config
)

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
// --verbose / -V と --config / -C は clibase が用意してくれるのだ。
func addAppFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&opts.Source, "source", "s", "", "シーンリストの場所（ローカル or https://...）なのだ。省略時は SCENES_SOURCE なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.DecodeMode, "decode-mode", "", "画像読み込みの方式（decode / event）なのだ。")
}

// preRunAppE は、コマンド実行前に設定を読み込み、ログ出力を整えるのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	opts.Verbose = clibase.Flags.Verbose
	cfg.Apply(opts)

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()})
	slog.SetDefault(slog.New(handler))
	appCfg = cfg
	return nil
}

// newRootCmd は clibase のルートコマンドにサブコマンドをぶら下げるのだ。
func newRootCmd() *cobra.Command {
	rootCmd := clibase.NewRootCmd(appName, addAppFlags, preRunAppE)
	rootCmd.Short = "シーンリストの画像を順番に表示・検査するのだ。"
	rootCmd.Long = ""
	rootCmd.SilenceUsage = true
	rootCmd.AddCommand(viewCmd, checkCmd)
	return rootCmd
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
// clibase.Execute は context を受け取らないので、シグナルで止められるように
// ルートコマンドだけ借りて ExecuteContext で動かすのだ。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
