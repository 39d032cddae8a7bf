package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shouni/go-scene-kit/pkg/asset"
	"github.com/shouni/go-scene-kit/pkg/domain"
	"github.com/shouni/go-scene-kit/pkg/parser"
)

// LoadError はシーンリストを取得・解析できなかったことを表します。
// シーンがなければシーケンサーを構築できないため、起動時の致命的なエラーとして扱います。
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("シーンリストの読み込みに失敗しました (%s): %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Reader はシーンリスト文書を読み込みます。fetch.Fetcher が実装します。
type Reader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Store は読み込み済みのシーンを保持します。Load の後は変更されません。
type Store struct {
	source string
	scenes domain.Scenes
}

// Load はシーンリストを取得して解析し、Store を返します。
// 各シーンの相対参照はシーンリストの場所を基準に解決されます。
func Load(ctx context.Context, r Reader, source string) (*Store, error) {
	if r == nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("reader は必須です")}
	}
	slog.InfoContext(ctx, "シーンリストを読み込んでいます", "source", source)

	data, err := r.Read(ctx, source)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	scenes, err := parse(data, domain.DetectFormat(sourcePath(source), data))
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	for i := range scenes {
		scenes[i].Ref = asset.ResolveRef(source, scenes[i].Ref)
	}

	slog.InfoContext(ctx, "シーンリストを読み込みました", "source", source, "scenes", len(scenes))
	return New(source, scenes), nil
}

// New は解析済みのシーンから Store を生成します。scenes はコピーして保持します。
func New(source string, scenes domain.Scenes) *Store {
	copied := make(domain.Scenes, len(scenes))
	copy(copied, scenes)
	return &Store{source: source, scenes: copied}
}

// Get は index のシーンを返します。index の範囲チェックは呼び出し側の責務です。
func (s *Store) Get(index int) domain.Scene {
	return s.scenes[index]
}

// Len はシーン数を返します。
func (s *Store) Len() int {
	return len(s.scenes)
}

// Scenes は全シーンのコピーを返します。
func (s *Store) Scenes() domain.Scenes {
	copied := make(domain.Scenes, len(s.scenes))
	copy(copied, s.scenes)
	return copied
}

// Source は読み込み元を返します。
func (s *Store) Source() string {
	return s.source
}

// sourcePath は形式判定のため、URL のクエリ等を除いたパス部分を返します。
func sourcePath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Path != "" && asset.IsRemote(source) {
		return u.Path
	}
	return source
}

func parse(data []byte, format domain.Format) (domain.Scenes, error) {
	if format == domain.FormatMarkdown {
		return parser.NewMarkdownParser().Parse(string(data))
	}
	return domain.ParseScenes(data, format)
}
