package asset

import (
	"path/filepath"
	"testing"
)

func TestResolveRef(t *testing.T) {
	tests := []struct {
		name   string
		source string
		ref    string
		want   string
	}{
		{"ソースなし", "", "img/a.png", "img/a.png"},
		{"絶対URLはそのまま", "https://example.com/show/scenes.json", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"URLからの相対参照", "https://example.com/show/scenes.json", "img/a.png", "https://example.com/show/img/a.png"},
		{"クエリ付きURLからの相対参照", "https://example.com/show/scenes.json?v=2", "a.png", "https://example.com/show/a.png"},
		{"URLからの親ディレクトリ参照", "https://example.com/show/scenes.json", "../a.png", "https://example.com/a.png"},
		{"ローカルパスからの相対参照", filepath.Join("data", "scenes.json"), "img/a.png", filepath.Join("data", "img", "a.png")},
		{"カレントのシーンリスト", "scenes.json", "a.png", "a.png"},
		{"data URI はそのまま", "scenes.json", "data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
		{"URL として解釈できない data URI もそのまま", "https://example.com/scenes.json", "data:,100%", "data:,100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRef(tt.source, tt.ref); got != tt.want {
				t.Errorf("ResolveRef(%q, %q) = %q, want %q", tt.source, tt.ref, got, tt.want)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("HTTPS://example.com/a.png") {
		t.Error("大文字のスキームも URL として扱うべきです")
	}
	if IsRemote("images/a.png") {
		t.Error("ローカルパスを URL と判定しました")
	}
}
