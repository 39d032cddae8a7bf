package runner

import (
	"fmt"
	"strconv"
	"strings"
)

// Action はナビゲーション入力1行が表す操作です。
type Action int

const (
	ActionNext Action = iota
	ActionPrev
	ActionJump
	ActionFirst
	ActionLast
	ActionQuit
)

// Command は解析済みのナビゲーション入力です。Index は ActionJump のときだけ使い、0始まりです。
type Command struct {
	Action Action
	Index  int
}

// ParseCommand はナビゲーション入力の1行を解析します。
// 数字は位置表示と同じ1始まりとして扱います。空行とスペースは「次へ」です。
func ParseCommand(line string) (Command, error) {
	if strings.TrimSpace(line) == "" {
		return Command{Action: ActionNext}, nil
	}

	word := strings.ToLower(strings.TrimSpace(line))
	switch word {
	case "n", "l", "right", "next":
		return Command{Action: ActionNext}, nil
	case "p", "h", "left", "prev":
		return Command{Action: ActionPrev}, nil
	case "first":
		return Command{Action: ActionFirst}, nil
	case "last":
		return Command{Action: ActionLast}, nil
	case "q", "quit", "exit":
		return Command{Action: ActionQuit}, nil
	}

	n, err := strconv.Atoi(word)
	if err != nil {
		return Command{}, fmt.Errorf("不明なコマンドです: %q", word)
	}
	return Command{Action: ActionJump, Index: n - 1}, nil
}
