// Package loader は画像の「読み込んで確定させる」操作を提供します。
//
// バックエンドは2種類あります。
//   - DecodeLoader: 画像を完全にデコードしてから確定させる
//   - EventLoader: 読み込み完了/失敗のコールバック対で確定させる（デコードを伴わない環境向け）
//
// どちらも同じ Handle を返すため、呼び出し側は確定の方式を意識する必要がありません。
package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/shouni/go-scene-kit/pkg/config"
)

// Loader は参照先の読み込みを非同期に開始し、その結果を Handle で通知します。
// Load は呼び出し元をブロックしてはいけません。
type Loader interface {
	Load(ctx context.Context, ref string) *Handle
}

// Func は関数を Loader として扱うためのアダプタです。
type Func func(ctx context.Context, ref string) *Handle

func (f Func) Load(ctx context.Context, ref string) *Handle { return f(ctx, ref) }

// Source は画像のバイト列を取得します。fetch.Fetcher が実装します。
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// New は mode に対応するバックエンドの Loader を生成します。
func New(mode string, src Source, logger *slog.Logger) (Loader, error) {
	if src == nil {
		return nil, fmt.Errorf("src は必須です")
	}
	switch mode {
	case config.DecodeModeDecode, "":
		return NewDecodeLoader(src, logger), nil
	case config.DecodeModeEvent:
		return NewEventLoader(HeaderEvents(src)), nil
	default:
		return nil, fmt.Errorf("未対応の decode mode です: %q", mode)
	}
}

// DecodeLoader は画像を取得して完全にデコードしてから確定させます。
type DecodeLoader struct {
	src    Source
	logger *slog.Logger
}

// NewDecodeLoader は DecodeLoader を生成します。
func NewDecodeLoader(src Source, logger *slog.Logger) *DecodeLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecodeLoader{src: src, logger: logger.With("component", "loader")}
}

// Load は取得とデコードをゴルーチンで開始し、すぐに Handle を返します。
func (l *DecodeLoader) Load(ctx context.Context, ref string) *Handle {
	h := NewHandle(ref)
	go func() {
		data, err := l.src.Fetch(ctx, ref)
		if err != nil {
			h.Settle(nil, &DecodeError{Ref: ref, Err: err})
			return
		}
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			h.Settle(nil, &DecodeError{Ref: ref, Err: err})
			return
		}
		l.logger.Debug("Decoded image", "ref", ref, "format", format)
		h.Settle(img, nil)
	}()
	return h
}

// EventFunc はコールバック方式の読み込みプリミティブです。
// 読み込みが終わると onLoad か onError のどちらかを1回だけ呼び出します。
type EventFunc func(ctx context.Context, ref string, onLoad func(image.Config), onError func(error))

// EventLoader は onLoad/onError のコールバック対を Handle の確定に変換します。
type EventLoader struct {
	start EventFunc
}

// NewEventLoader は EventLoader を生成します。
func NewEventLoader(start EventFunc) *EventLoader {
	return &EventLoader{start: start}
}

// Load は読み込みを開始し、コールバックで確定する Handle を返します。
func (l *EventLoader) Load(ctx context.Context, ref string) *Handle {
	h := NewHandle(ref)
	l.start(ctx, ref,
		func(cfg image.Config) { h.SettleConfig(cfg, nil) },
		func(err error) { h.SettleConfig(image.Config{}, &DecodeError{Ref: ref, Err: err}) },
	)
	return h
}

// HeaderEvents は、バイト列を取得して画像ヘッダのみを検査する EventFunc を返します。
func HeaderEvents(src Source) EventFunc {
	return func(ctx context.Context, ref string, onLoad func(image.Config), onError func(error)) {
		go func() {
			data, err := src.Fetch(ctx, ref)
			if err != nil {
				onError(err)
				return
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				onError(err)
				return
			}
			onLoad(cfg)
		}()
	}
}
