// Package fetch は画像やシーンリストのバイト列を HTTP(S)、ローカルファイル、
// または data: URI から取得します。
//
// HTTP(S) の取得は go-http-kit のクライアントに任せるため、5xx やネットワークエラーは
// 指数バックオフでリトライされ、4xx は即座に失敗します。
//
// 取得した画像データは go-cache に一定時間保持されるため、先読み済みの画像を
// 本番の差し替え時に再取得することはありません。同じ参照先への同時リクエストは
// singleflight で1本にまとめられます。
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-http-kit/httpkit"
	"golang.org/x/sync/singleflight"

	"github.com/shouni/go-scene-kit/pkg/asset"
)

var (
	// ErrNotFound は参照先が存在しないことを表します。
	ErrNotFound = errors.New("fetch: resource not found")
	// ErrTooLarge はレスポンスが MaxBytes を超えたことを表します。
	ErrTooLarge = errors.New("fetch: resource too large")
	// ErrUnsupportedScheme は扱えない URL スキームを表します。
	ErrUnsupportedScheme = errors.New("fetch: unsupported scheme")
	// ErrMalformedDataURI は解釈できない data: URI を表します。
	ErrMalformedDataURI = errors.New("fetch: malformed data URI")
)

// StatusError は 404 以外の 4xx ステータスを表します。
// 5xx はリトライの末に通常のエラーとして返されます。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s: unexpected status %d", e.URL, e.StatusCode)
}

// Downloader は HTTP(S) のレスポンスボディを返すクライアントです。
// httpkit.Client はこれを満たします。
type Downloader interface {
	GetStream(ctx context.Context, url string) (io.ReadCloser, error)
}

// Config は Fetcher の設定です。
type Config struct {
	// Client が nil の場合は Timeout などから httpkit.Client を生成します。
	Client Downloader

	Timeout       time.Duration // HTTP タイムアウト。デフォルト 30s
	MaxRetries    uint64        // 5xx とネットワークエラーの最大リトライ回数。デフォルト 3
	RetryInterval time.Duration // 最初のリトライまでの待機時間。デフォルト 1s

	// AllowPrivateNetwork が true の場合、ループバックやプライベートアドレスへのアクセスを許可します。
	AllowPrivateNetwork bool

	MaxBytes     int64         // 1リソースあたりの最大サイズ。デフォルト 20MiB
	CacheTTL     time.Duration // 取得済みバイト列の保持期間。デフォルト 30m
	CacheCleanup time.Duration // 期限切れエントリの掃除間隔。デフォルト 1h
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 20 << 20
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.CacheCleanup <= 0 {
		c.CacheCleanup = 1 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher はキャッシュ付きでリソースを取得します。
type Fetcher struct {
	client Downloader
	cfg    Config
	cache  *cache.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// New は Fetcher を生成します。
func New(cfg Config) *Fetcher {
	cfg.defaults()
	client := cfg.Client
	if client == nil {
		client = NewHTTPClient(cfg)
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
		cache:  cache.New(cfg.CacheTTL, cfg.CacheCleanup),
		logger: cfg.Logger.With("component", "fetch"),
	}
}

// NewHTTPClient は cfg のタイムアウトとリトライ設定から httpkit.Client を生成します。
func NewHTTPClient(cfg Config) *httpkit.Client {
	cfg.defaults()
	return httpkit.New(cfg.Timeout,
		httpkit.WithMaxRetries(cfg.MaxRetries),
		httpkit.WithInitialInterval(cfg.RetryInterval),
		httpkit.WithSkipNetworkValidation(cfg.AllowPrivateNetwork),
	)
}

// Fetch は参照先のバイト列を返します。取得済みであればキャッシュから返します。
// 同じ参照先への同時呼び出しは1回の取得にまとめられます。
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if data, ok := f.cache.Get(ref); ok {
		return data.([]byte), nil
	}

	// 取得自体は最初の呼び出し元の取り消しに巻き込まれないよう WithoutCancel で実行し、
	// 各呼び出し元は自分の ctx でのみ待機を打ち切る。
	ch := f.group.DoChan(ref, func() (interface{}, error) {
		if data, ok := f.cache.Get(ref); ok {
			return data, nil
		}
		data, err := f.Read(context.WithoutCancel(ctx), ref)
		if err != nil {
			return nil, err
		}
		f.cache.SetDefault(ref, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data, ok := res.Val.([]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected return type from singleflight: %T", res.Val)
		}
		return data, nil
	}
}

// Cached は参照先がキャッシュ済みかどうかを返します。
func (f *Fetcher) Cached(ref string) bool {
	_, ok := f.cache.Get(ref)
	return ok
}

// Read はキャッシュを介さずに参照先を読み込みます。シーンリストの取得に使います。
func (f *Fetcher) Read(ctx context.Context, ref string) ([]byte, error) {
	// data: のペイロードは url.Parse が受け付けない文字を含みうるため先に判定する
	if asset.IsDataURI(ref) {
		return f.readData(ref)
	}
	u, err := url.Parse(ref)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return f.readHTTP(ctx, ref)
		case "file":
			return f.readFile(u.Path)
		case "":
		default:
			if len(u.Scheme) > 1 {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
			}
			// "C:\..." のようなドライブレターはローカルパスとして扱う
		}
	}
	return f.readFile(ref)
}

func (f *Fetcher) readHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	body, err := f.client.GetStream(ctx, rawURL)
	if err != nil {
		var statusErr *httpkit.NonRetryableHTTPError
		if errors.As(err, &statusErr) {
			if statusErr.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
			}
			return nil, &StatusError{URL: rawURL, StatusCode: statusErr.StatusCode}
		}
		return nil, fmt.Errorf("リソースの取得に失敗しました (%s): %w", rawURL, err)
	}
	defer body.Close()

	data, err := readLimited(body, f.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み込みに失敗しました (%s): %w", rawURL, err)
	}
	f.logger.Debug("Fetched remote resource",
		slog.String("url", rawURL),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return data, nil
}

// readData は "data:[<mediatype>][;base64],<data>" 形式の参照をデコードします。
func (f *Fetcher) readData(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(ref[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: カンマがありません", ErrMalformedDataURI)
	}

	var data []byte
	var err error
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("ファイルのオープンに失敗しました (%s): %w", path, err)
	}
	defer file.Close()

	data, err := readLimited(file, f.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	return data, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}
