package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scene は画像とキャプションの組で、スライド1枚分の表示内容を表します。
// 一度パースされた後は変更されません。スライス上の位置が正規のインデックスです。
type Scene struct {
	Ref     string `json:"src" yaml:"src"` // 画像の参照先（URL またはパス）
	Caption string `json:"cap,omitempty" yaml:"cap,omitempty"`
}

// Scenes はシーンの順序付き列です。
type Scenes []Scene

// Format はシーンリスト文書の形式です。
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown" // pkg/parser が解析する
)

// DetectFormat は拡張子（なければ内容の先頭文字）からシーンリストの形式を推定します。
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatYAML
}

// ParseScenes はシーンリスト文書をパースします。
// 空のリストと参照先のないシーンはエラーとして扱います。
func ParseScenes(data []byte, format Format) (Scenes, error) {
	var scenes Scenes
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &scenes); err != nil {
			return nil, fmt.Errorf("シーンリストのJSONパースに失敗しました: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &scenes); err != nil {
			return nil, fmt.Errorf("シーンリストのYAMLパースに失敗しました: %w", err)
		}
	default:
		return nil, fmt.Errorf("未対応のシーンリスト形式です: %q", format)
	}

	if err := scenes.Validate(); err != nil {
		return nil, err
	}
	return scenes, nil
}

// Validate は空のリストと参照先のないシーンをエラーにします。
func (ss Scenes) Validate() error {
	if len(ss) == 0 {
		return fmt.Errorf("シーンリストが空です")
	}
	for i, s := range ss {
		if strings.TrimSpace(s.Ref) == "" {
			return fmt.Errorf("シーン %d に画像の参照先(src)がありません", i+1)
		}
	}
	return nil
}

// Refs は各シーンの参照先を順番どおりに返します。
func (ss Scenes) Refs() []string {
	refs := make([]string, len(ss))
	for i, s := range ss {
		refs[i] = s.Ref
	}
	return refs
}

// UniqueRefs は重複しない参照先を出現順に返します。
func (ss Scenes) UniqueRefs() []string {
	seen := make(map[string]struct{}, len(ss))
	refs := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s.Ref]; ok {
			continue
		}
		seen[s.Ref] = struct{}{}
		refs = append(refs, s.Ref)
	}
	return refs
}
