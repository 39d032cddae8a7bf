package parser

import "regexp"

var (
	// TitleRegex は "# タイトル" 形式のタイトル行をキャプチャします。
	TitleRegex = regexp.MustCompile(`^#\s+(.+)`)

	// SceneRegex は "## Scene" で始まるシーン区切り行を特定します。
	SceneRegex = regexp.MustCompile(`^##\s+(?i:scene|slide)\b`)

	// FieldRegex は "- key: value" 形式のフィールド行をキャプチャします。
	FieldRegex = regexp.MustCompile(`^\s*-\s*([a-zA-Z_]+):\s*(.+)`)

	// ImageRegex は "![キャプション](参照先)" 形式の画像行をキャプチャします。
	ImageRegex = regexp.MustCompile(`^!\[([^\]]*)\]\(\s*([^)\s]+)\s*\)$`)
)
