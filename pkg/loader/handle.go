package loader

import (
	"context"
	"image"
	"sync"
)

// Handle は1回の画像読み込みの結果を表します。
// 読み込みが成功しても失敗しても、Settle はちょうど1回だけ結果を確定させ、Done を閉じます。
type Handle struct {
	ref  string
	done chan struct{}
	once sync.Once

	img image.Image
	cfg image.Config
	err error
}

// NewHandle は未確定の Handle を生成します。
func NewHandle(ref string) *Handle {
	return &Handle{ref: ref, done: make(chan struct{})}
}

// Ref は読み込み対象の参照先を返します。
func (h *Handle) Ref() string { return h.ref }

// Done は結果が確定すると閉じられるチャネルを返します。
func (h *Handle) Done() <-chan struct{} { return h.done }

// Settle は読み込み結果を確定させます。2回目以降の呼び出しは無視されます。
func (h *Handle) Settle(img image.Image, err error) {
	cfg := image.Config{}
	if img != nil {
		b := img.Bounds()
		cfg = image.Config{ColorModel: img.ColorModel(), Width: b.Dx(), Height: b.Dy()}
	}
	h.settle(img, cfg, err)
}

// SettleConfig はピクセルをデコードせず、ヘッダ情報のみで結果を確定させます。
func (h *Handle) SettleConfig(cfg image.Config, err error) {
	h.settle(nil, cfg, err)
}

func (h *Handle) settle(img image.Image, cfg image.Config, err error) {
	h.once.Do(func() {
		h.img, h.cfg, h.err = img, cfg, err
		close(h.done)
	})
}

// Settled は結果が確定済みかどうかを返します。
func (h *Handle) Settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait は結果の確定を待ち、読み込みエラーを返します。
// ctx が先に終了した場合は ctx のエラーを返します。
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return h.err
	}
}

// Err は確定した読み込みエラーを返します。未確定の場合は nil です。
func (h *Handle) Err() error {
	if !h.Settled() {
		return nil
	}
	return h.err
}

// Image はデコード済みの画像を返します。イベント方式で確定した場合は nil です。
func (h *Handle) Image() image.Image {
	if !h.Settled() {
		return nil
	}
	return h.img
}

// Config は確定した画像のサイズとカラーモデルを返します。
func (h *Handle) Config() image.Config {
	if !h.Settled() {
		return image.Config{}
	}
	return h.cfg
}
