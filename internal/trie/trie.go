// Package trie 实现经典的 Aho–Corasick 多模式匹配（失败指针 trie）。
//
// 该包与卡片分类语义完全解耦：模式与 tag 由调用方注册，本包只保证
// 扫描语义——所有模式的所有出现（含互相重叠的）都会被报告，
// 按结束偏移非递减的顺序，耗时与“扫描区域长度 + 命中数”成线性，
// 与注册模式数量无关。
package trie

import (
	"errors"
	"fmt"
)

var (
	// ErrBuilt 表示 Build 之后继续 Add。
	ErrBuilt = errors.New("trie: 已 Build，不能再 Add")
	// ErrEmptyPattern 表示注册了空模式。
	ErrEmptyPattern = errors.New("trie: 模式不能为空")
)

// Trie 是多模式匹配自动机。Build 之前通过 Add 注册模式；
// Build 之后只读，可安全跨 goroutine 共享。
type Trie[V any] struct {
	nodes    []node[V]
	patterns map[string]struct{}
	built    bool
}

type node[V any] struct {
	next map[byte]int32
	fail int32
	outs []V
}

// New 创建空自动机（仅含根节点）。
func New[V any]() *Trie[V] {
	return &Trie[V]{
		nodes:    []node[V]{{next: map[byte]int32{}}},
		patterns: map[string]struct{}{},
	}
}

// Add 注册一个模式及其 tag。
// 同一模式注册两次是错误：本包无法比较 tag 是否等价，
// 去重（或冲突检测）是调用方的责任。
func (t *Trie[V]) Add(pattern string, value V) error {
	if t.built {
		return ErrBuilt
	}
	if pattern == "" {
		return ErrEmptyPattern
	}
	if _, ok := t.patterns[pattern]; ok {
		return fmt.Errorf("trie: 重复的模式：%q", pattern)
	}
	t.patterns[pattern] = struct{}{}

	cur := int32(0)
	for i := 0; i < len(pattern); i++ {
		b := pattern[i]
		nxt, ok := t.nodes[cur].next[b]
		if !ok {
			t.nodes = append(t.nodes, node[V]{next: map[byte]int32{}})
			nxt = int32(len(t.nodes) - 1)
			t.nodes[cur].next[b] = nxt
		}
		cur = nxt
	}
	t.nodes[cur].outs = append(t.nodes[cur].outs, value)
	return nil
}

// Len 返回已注册的模式数。
func (t *Trie[V]) Len() int { return len(t.patterns) }

// Build 计算失败指针并合并输出集。构造是确定性的、全量的：
// 每个注册过的模式都会被表示。Build 之后自动机只读。
func (t *Trie[V]) Build() {
	if t.built {
		return
	}
	t.built = true

	// BFS：保证父节点的失败指针先于子节点计算。
	queue := make([]int32, 0, len(t.nodes))
	for _, c := range t.nodes[0].next {
		t.nodes[c].fail = 0
		queue = append(queue, c)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// 把失败链上的输出并入当前节点：扫描时无需再走失败链收集命中，
		// 重叠的短模式（长模式的后缀）也能在同一结束位置全部报告。
		f := t.nodes[cur].fail
		t.nodes[cur].outs = append(t.nodes[cur].outs, t.nodes[f].outs...)

		for b, c := range t.nodes[cur].next {
			f := t.nodes[cur].fail
			for {
				if nxt, ok := t.nodes[f].next[b]; ok && nxt != c {
					t.nodes[c].fail = nxt
					break
				}
				if f == 0 {
					t.nodes[c].fail = 0
					break
				}
				f = t.nodes[f].fail
			}
			queue = append(queue, c)
		}
	}
}

// Scan 从 start 偏移起扫描 data，每个命中回调一次 visit(end, value)，
// end 是模式最后一个字节的偏移。回调按 end 非递减顺序触发；
// visit 返回 false 则提前终止。只匹配完全落在 [start, len(data)) 内的出现。
//
// 未 Build 的自动机扫描不产生任何命中。
func (t *Trie[V]) Scan(data []byte, start int, visit func(end int, value V) bool) {
	if !t.built {
		return
	}
	if start < 0 {
		start = 0
	}

	cur := int32(0)
	for i := start; i < len(data); i++ {
		b := data[i]
		for {
			if nxt, ok := t.nodes[cur].next[b]; ok {
				cur = nxt
				break
			}
			if cur == 0 {
				break
			}
			cur = t.nodes[cur].fail
		}
		for _, v := range t.nodes[cur].outs {
			if !visit(i, v) {
				return
			}
		}
	}
}
