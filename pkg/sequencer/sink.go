package sequencer

import "fmt"

// PositionSink は表示位置とキャプションを受け取ります。
// 差し替えの確定時と、同一画像の短絡時の両方で呼ばれます。
type PositionSink interface {
	ShowPosition(index, total int, caption string)
}

// PositionFunc は関数を PositionSink として扱うためのアダプタです。
type PositionFunc func(index, total int, caption string)

func (f PositionFunc) ShowPosition(index, total int, caption string) { f(index, total, caption) }

// TransitionTrigger は画像が実際に切り替わったときに1回だけ呼ばれます。
type TransitionTrigger interface {
	PlayTransition()
}

// TransitionFunc は関数を TransitionTrigger として扱うためのアダプタです。
type TransitionFunc func()

func (f TransitionFunc) PlayTransition() { f() }

type nopSink struct{}

func (nopSink) ShowPosition(int, int, string) {}
func (nopSink) PlayTransition()               {}

// Badge は位置表示用の "3 / 10" 形式の文字列を返します。index は0始まりです。
func Badge(index, total int) string {
	return fmt.Sprintf("%d / %d", index+1, total)
}
