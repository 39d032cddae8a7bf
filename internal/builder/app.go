package builder

import (
	"log/slog"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-scene-kit/internal/config"

	"github.com/shouni/go-scene-kit/pkg/fetch"
	"github.com/shouni/go-scene-kit/pkg/loader"
	"github.com/shouni/go-scene-kit/pkg/store"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config     // Configは、環境変数とフラグを合わせた設定です。
	Options config.ViewOptions // Optionsは、コマンドラインから渡された実行時の設定です。
	Fetcher *fetch.Fetcher     // Fetcherは、シーンリストと画像の取得に使う共通の取得層です。
	Loader  loader.Loader      // Loaderは、設定されたバックエンドで画像を読み込みます。
	Store   *store.Store       // Storeは、読み込み済みのシーンリストです。
	Logger  *slog.Logger

	httpClient httpkit.Downloader // httpClient はリモートの画像取得に使う共通クライアント
}

// HTTPClient は Fetcher が使う HTTP クライアントを返します。
func (a *AppContext) HTTPClient() httpkit.Downloader {
	return a.httpClient
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.Downloader,
	fetcher *fetch.Fetcher,
	l loader.Loader,
	st *store.Store,
	logger *slog.Logger,
) AppContext {
	return AppContext{
		Config:  cfg,
		Options: cfg.Options,
		Fetcher: fetcher,
		Loader:  l,
		Store:   st,
		Logger:  logger,

		httpClient: httpClient,
	}
}
