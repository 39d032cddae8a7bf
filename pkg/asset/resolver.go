package asset

import (
	"net/url"
	"path/filepath"
	"strings"
)

// IsRemote は参照先が HTTP(S) の URL かどうかを判定します。
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsDataURI は参照先が画像データを埋め込んだ data: URI かどうかを判定します。
func IsDataURI(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "data:")
}

// ResolveRef は、シーンの参照先をシーンリスト（source）からの相対参照として解決します。
// ブラウザが scenes.json を基準に画像を読み込むのと同じ規則です。
// 絶対URL・絶対パス・data URI はそのまま返します。
func ResolveRef(source, ref string) string {
	if source == "" || ref == "" {
		return ref
	}
	if IsDataURI(ref) {
		return ref
	}
	if u, err := url.Parse(ref); err == nil && len(u.Scheme) > 1 {
		return ref
	}
	if filepath.IsAbs(ref) {
		return ref
	}

	if IsRemote(source) {
		baseURL, err := url.Parse(source)
		if err != nil {
			return ref
		}
		relURL, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return baseURL.ResolveReference(relURL).String()
	}

	local := strings.TrimPrefix(source, "file://")
	return filepath.Join(filepath.Dir(local), filepath.FromSlash(ref))
}
