package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/go-scene-kit/pkg/domain"
)

type fakeReader map[string]string

func (f fakeReader) Read(_ context.Context, ref string) ([]byte, error) {
	data, ok := f[ref]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return []byte(data), nil
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("相対参照がシーンリストの場所から解決されること", func(t *testing.T) {
		r := fakeReader{
			"https://example.com/show/scenes.json?v=2": `[
				{"src": "img/1.png", "cap": "一"},
				{"src": "https://cdn.example.com/2.png"}
			]`,
		}
		s, err := Load(ctx, r, "https://example.com/show/scenes.json?v=2")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", s.Len())
		}
		if got := s.Get(0); got.Ref != "https://example.com/show/img/1.png" || got.Caption != "一" {
			t.Errorf("Get(0) = %+v", got)
		}
		if got := s.Get(1).Ref; got != "https://cdn.example.com/2.png" {
			t.Errorf("Get(1).Ref = %q", got)
		}
	})

	t.Run("YAMLのシーンリストも読み込めること", func(t *testing.T) {
		r := fakeReader{"https://example.com/scenes.yaml": "- src: https://example.com/a.png\n  cap: A\n"}
		s, err := Load(ctx, r, "https://example.com/scenes.yaml")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Get(0).Caption != "A" {
			t.Errorf("Get(0) = %+v", s.Get(0))
		}
	})

	t.Run("MarkdownのシーンリストはMarkdownParserで読み込まれること", func(t *testing.T) {
		r := fakeReader{"docs/story.md": "# 物語\n\n![表紙](cover.png)\n\n## Scene\n- src: 01.png\n- cap: 朝\n"}
		s, err := Load(ctx, r, "docs/story.md")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Len() != 2 || s.Get(0).Ref != "docs/cover.png" || s.Get(1).Caption != "朝" {
			t.Errorf("Scenes() = %+v", s.Scenes())
		}
	})

	t.Run("取得・解析の失敗は LoadError になること", func(t *testing.T) {
		r := fakeReader{
			"bad.json":   `{"oops": true`,
			"empty.json": `[]`,
		}
		for _, src := range []string{"unreachable.json", "bad.json", "empty.json"} {
			_, err := Load(ctx, r, src)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Errorf("%s: error = %v, want LoadError", src, err)
				continue
			}
			if le.Source != src {
				t.Errorf("LoadError.Source = %q, want %q", le.Source, src)
			}
		}
	})

	t.Run("reader がなければ LoadError になること", func(t *testing.T) {
		var le *LoadError
		if _, err := Load(ctx, nil, "x.json"); !errors.As(err, &le) {
			t.Errorf("error = %v, want LoadError", err)
		}
	})
}

func TestStore_IsImmutable(t *testing.T) {
	scenes := domain.Scenes{{Ref: "a"}, {Ref: "b"}}
	s := New("memory", scenes)

	scenes[0].Ref = "changed"
	if s.Get(0).Ref != "a" {
		t.Error("呼び出し元のスライス変更が Store に反映されました")
	}

	out := s.Scenes()
	out[1].Ref = "changed"
	if s.Get(1).Ref != "b" {
		t.Error("Scenes() の戻り値の変更が Store に反映されました")
	}
}
