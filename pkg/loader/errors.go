package loader

import "fmt"

// DecodeError は特定の画像の取得またはデコードに失敗したことを表します。
// 表示の確定には影響しない非致命的なエラーです。
type DecodeError struct {
	Ref string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("画像の読み込みに失敗しました (%s): %v", e.Ref, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
