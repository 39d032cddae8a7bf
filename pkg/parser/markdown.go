// Package parser は Markdown 形式のシーンリストを解析します。
//
// 次の2つの書き方を混在させることができます。
//
//	## Scene
//	- src: images/001.png
//	- cap: 朝の駅前
//
//	![夕方の駅前](images/002.png)
package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-scene-kit/pkg/domain"
)

const (
	fieldKeySrc     = "src"
	fieldKeyCap     = "cap"
	fieldKeyCaption = "caption"
)

// MarkdownParser はMarkdown形式を解析し、シーンの列に変換する構造体です。
type MarkdownParser struct {
}

// NewMarkdownParser は Parser を初期化するのだ。
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse は Markdown テキストを解析して domain.Scenes に変換します。
// 参照先は書かれたまま返します。相対参照の解決は呼び出し側の責務です。
func (p *MarkdownParser) Parse(input string) (domain.Scenes, error) {
	var (
		scenes  domain.Scenes
		current *domain.Scene
	)

	// 前のシーンを確定して追加するヘルパー関数
	flush := func() {
		if current != nil && hasContent(current) {
			scenes = append(scenes, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(input, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" {
			continue
		}

		if TitleRegex.MatchString(trimmedLine) {
			continue
		}

		if SceneRegex.MatchString(trimmedLine) {
			flush()
			current = &domain.Scene{}
			continue
		}

		if m := ImageRegex.FindStringSubmatch(trimmedLine); m != nil {
			flush()
			scenes = append(scenes, domain.Scene{Ref: m[2], Caption: strings.TrimSpace(m[1])})
			continue
		}

		if current == nil {
			continue
		}
		if m := FieldRegex.FindStringSubmatch(trimmedLine); m != nil {
			key, val := strings.ToLower(m[1]), strings.TrimSpace(m[2])
			switch key {
			case fieldKeySrc:
				current.Ref = val
			case fieldKeyCap, fieldKeyCaption:
				current.Caption = val
			default:
				slog.Debug("Markdown内に未知のフィールドキーが見つかりました", "key", key)
			}
		}
	}
	flush()

	if err := scenes.Validate(); err != nil {
		return nil, fmt.Errorf("Markdownのシーンリストが不正です: %w", err)
	}
	return scenes, nil
}

// hasContent はシーンに有効な情報が含まれているか判定します。
func hasContent(s *domain.Scene) bool {
	return s.Ref != "" || s.Caption != ""
}
