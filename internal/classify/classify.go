package classify

import (
	"bytes"

	"github.com/schneckenschnabel/CardOrganizer/internal/domain"
	"github.com/schneckenschnabel/CardOrganizer/internal/registry"
)

// Classify 扫描一个卡片文件的字节并给出分类。
//
// 只扫描 IEND 之后的区域：标记字面量可能碰巧出现在图像载荷里，
// 只有应用追加的尾部元数据可信。没有 IEND 的文件不是卡片容器，
// 直接返回不可分类。
//
// 优先级规则（显式状态机，三个状态）：
//   - 未分类 → 任意普通命中：记录 (游戏, 分类)
//   - 已分类(非 scene) → 新普通命中：覆盖（后出现的标记更权威）
//   - scene → 吸收态：后续普通命中一律忽略
//     （scene 卡内部嵌套角色格式标记，scene 判定必须获胜）
//
// sex 哨兵独立累积：第一个“其后字节可识别”的哨兵生效，之后忽略。
func (a *Automaton) Classify(data []byte) domain.ScanResult {
	idx := bytes.Index(data, []byte(registry.EndOfImage))
	if idx < 0 {
		return domain.ScanResult{}
	}

	var (
		game     string
		category string
		sex      = domain.SexUnknown
	)

	a.t.Scan(data, idx, func(end int, tg tag) bool {
		if tg.sex {
			if sex == domain.SexUnknown && end+1 < len(data) {
				if s, ok := domain.ParseSexByte(data[end+1]); ok {
					sex = s
				}
			}
		} else if category != registry.CategoryScene {
			game, category = tg.game, tg.category
		}
		// scene 已定且 sex 已知：后续命中不可能再改变结果。
		return category != registry.CategoryScene || sex == domain.SexUnknown
	})

	if game == "" || category == "" {
		return domain.ScanResult{}
	}
	return domain.ScanResult{Game: game, Category: category, Sex: sex}
}
