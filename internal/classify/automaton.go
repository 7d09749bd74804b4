// Package classify 把注册表编译为匹配自动机，并在其命中流上实现
// 卡片分类的优先级规则。
package classify

import (
	"fmt"

	"github.com/schneckenschnabel/CardOrganizer/internal/registry"
	"github.com/schneckenschnabel/CardOrganizer/internal/trie"
)

// tag 是命中标记的归属：要么是 (游戏, 分类)，要么是 sex 哨兵。
type tag struct {
	game     string
	category string
	sex      bool
}

func (t tag) String() string {
	if t.sex {
		return "sex"
	}
	return t.game + "/" + t.category
}

// ConflictError 表示同一标记字面量被映射到两个不同的 tag。
// 这是注册表本身写错了：静默二选一会让分类依赖插入顺序，必须在启动时失败。
type ConflictError struct {
	Marker string
	A, B   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("标记 %q 映射冲突：%s 与 %s", e.Marker, e.A, e.B)
}

// Automaton 是从 Registry 一次性构建的只读分类自动机，
// 跨 worker 共享无需加锁。
type Automaton struct {
	reg registry.Registry
	t   *trie.Trie[tag]
}

// NewAutomaton 注册 registry 的全部 (游戏, 分类, 字面量) 三元组与 sex 哨兵，
// 然后定稿为可线性扫描的形态。
// 同一字面量注册相同 tag 允许（忽略重复）；不同 tag 返回 *ConflictError。
func NewAutomaton(reg registry.Registry) (*Automaton, error) {
	t := trie.New[tag]()
	seen := make(map[string]tag, 64)

	add := func(marker string, tg tag) error {
		if prev, ok := seen[marker]; ok {
			if prev == tg {
				return nil
			}
			return &ConflictError{Marker: marker, A: prev.String(), B: tg.String()}
		}
		seen[marker] = tg
		return t.Add(marker, tg)
	}

	for _, g := range reg.Games {
		for _, cp := range g.Patterns {
			for _, m := range cp.Markers {
				if err := add(m, tag{game: g.Code, category: cp.Category}); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := add(registry.SexSentinel, tag{sex: true}); err != nil {
		return nil, err
	}

	t.Build()
	return &Automaton{reg: reg, t: t}, nil
}

// Registry 返回构建该自动机的注册表（目标解析需要 Legacy 信息）。
func (a *Automaton) Registry() registry.Registry { return a.reg }
