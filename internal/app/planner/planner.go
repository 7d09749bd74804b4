// Package planner 把分类结果映射为输出根目录下的相对目录（纯函数，不做 I/O）。
package planner

import (
	"path/filepath"

	"github.com/schneckenschnabel/CardOrganizer/internal/domain"
	"github.com/schneckenschnabel/CardOrganizer/internal/registry"
)

// 限定模式下 scene 卡归入游戏资料库的 studio 子树。
const studioDir = "studio"

// Resolve 计算 sr 的目标相对目录。
//
// game == ""（非限定模式）：
//   - 路径 = 游戏代码/分类
//   - 分类为 chara 且性别已知：分类段折叠为 male/female（丢弃 "chara" 标签，
//     沿用既有输出树的布局）
//
// game != ""（限定模式，面向某个游戏的资料库树）：
//   - 卡片游戏必须被 game 接受（相同代码或其 Legacy 子集，如 KKS 接受 KK），
//     否则对本次运行视为不可分类
//   - chara 且性别已知：chara/<性别>/<label>
//   - scene：studio/scene/<label>
//   - 其他：分类/<label>
//   - 游戏代码不进入路径（调用方已经站在该游戏的树里）；label 为空则省略该段
//
// 纯函数：同一输入永远得到同一路径；不可分类输入永远返回 ok=false。
func Resolve(reg registry.Registry, sr domain.ScanResult, game, label string) (string, bool) {
	if !sr.Classified() {
		return "", false
	}

	if game == "" {
		sub := sr.Category
		if sr.Category == registry.CategoryChara && sr.Sex != domain.SexUnknown {
			sub = sr.Sex.Name()
		}
		return filepath.Join(sr.Game, sub), true
	}

	if !reg.Accepts(game, sr.Game) {
		return "", false
	}

	var parts []string
	switch {
	case sr.Category == registry.CategoryChara && sr.Sex != domain.SexUnknown:
		parts = []string{registry.CategoryChara, sr.Sex.Name()}
	case sr.Category == registry.CategoryScene:
		parts = []string{studioDir, registry.CategoryScene}
	default:
		parts = []string{sr.Category}
	}
	if label != "" {
		parts = append(parts, label)
	}
	return filepath.Join(parts...), true
}
