package registry

import (
	"fmt"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const (
	// EndOfImage 是 PNG chunk 流结束标记。卡片元数据紧跟其后，
	// 分类只扫描该标记之后的区域（图像载荷里可能碰巧出现标记字面量）。
	EndOfImage = "IEND"

	// SexSentinel 是保留哨兵：只用于定位其后单字节的性别编码，不参与游戏/分类判定。
	SexSentinel = "sex"
)

const (
	// CategoryChara 是携带性别信息的分类：性别已知时目录会折叠为 male/female。
	CategoryChara = "chara"
	// CategoryScene 是粘滞分类：一旦命中，后续普通标记不再覆盖
	//（scene 卡内部常嵌套角色格式标记）。
	CategoryScene = "scene"
)

// CategoryPattern 是 (分类, 标记字面量集) 对：任一字面量命中即判定该分类。
// 同一分类可出现多次（同一分类的不同格式版本标记）。
type CategoryPattern struct {
	Category string
	Markers  []string
}

// GameDefinition 描述一个已知的出品应用。构造完成后只读。
type GameDefinition struct {
	// Code 是短助记符（大写），也是非限定模式下输出路径的第一段。
	Code string

	// Legacy 列出该游戏作为 --game 限定目标时额外接受的旧版子集游戏
	//（例如 KKS 的资料库兼容 KK 卡）。
	Legacy []string

	Patterns []CategoryPattern
}

// Registry 是已知游戏与标记字面量的只读全集。
// 进程启动时构造一次，之后跨 worker 共享，无需加锁。
type Registry struct {
	Games []GameDefinition

	byCode map[string]int
}

// New 构造并校验 Registry。
// 空代码/空分类/空字面量、重复的游戏代码、指向未知游戏的 Legacy 都是构造错误。
func New(games ...GameDefinition) (Registry, error) {
	byCode := make(map[string]int, len(games))
	for i, g := range games {
		if g.Code == "" {
			return Registry{}, fmt.Errorf("游戏代码不能为空（index=%d）", i)
		}
		if _, ok := byCode[g.Code]; ok {
			return Registry{}, fmt.Errorf("重复的游戏代码：%q", g.Code)
		}
		byCode[g.Code] = i

		if len(g.Patterns) == 0 {
			return Registry{}, fmt.Errorf("游戏 %q 没有任何标记", g.Code)
		}
		for _, cp := range g.Patterns {
			if cp.Category == "" {
				return Registry{}, fmt.Errorf("游戏 %q 存在空分类", g.Code)
			}
			if len(cp.Markers) == 0 {
				return Registry{}, fmt.Errorf("游戏 %q 分类 %q 没有标记字面量", g.Code, cp.Category)
			}
			for _, m := range cp.Markers {
				if m == "" {
					return Registry{}, fmt.Errorf("游戏 %q 分类 %q 存在空标记字面量", g.Code, cp.Category)
				}
			}
		}
	}

	// Legacy 引用必须指向表内游戏（拼写错误要在启动时暴露，而不是静默不匹配）。
	for _, g := range games {
		for _, l := range g.Legacy {
			if _, ok := byCode[l]; !ok {
				return Registry{}, fmt.Errorf("游戏 %q 的 Legacy 引用了未知游戏 %q", g.Code, l)
			}
		}
	}

	return Registry{Games: games, byCode: byCode}, nil
}

// Lookup 按代码查找游戏定义。
func (r Registry) Lookup(code string) (GameDefinition, bool) {
	i, ok := r.byCode[code]
	if !ok {
		return GameDefinition{}, false
	}
	return r.Games[i], true
}

// Accepts 判断限定模式下 game 是否落在 restriction 的接受范围内：
// 代码相同，或 game 在 restriction 的 Legacy 列表里。
func (r Registry) Accepts(restriction, game string) bool {
	if restriction == game {
		return true
	}
	g, ok := r.Lookup(restriction)
	if !ok {
		return false
	}
	for _, l := range g.Legacy {
		if l == game {
			return true
		}
	}
	return false
}

// Default 返回内置的静态表。
//
// 注意：RG 的 scene 标记在元数据流里不是最后出现的 token；
// 只有配合“scene 粘滞”规则才能启用（否则会被后续角色标记覆盖）。
func Default() Registry {
	r, err := New(
		GameDefinition{Code: "KK", Patterns: []CategoryPattern{
			{Category: CategoryChara, Markers: []string{"【KoiKatuChara】", "【KoiKatuCharaS】", "【KoiKatuCharaSP】"}},
			{Category: "coordinate", Markers: []string{"【KoiKatuClothes】"}},
			{Category: CategoryScene, Markers: []string{"【KStudio】"}},
		}},
		GameDefinition{Code: "KKS", Legacy: []string{"KK"}, Patterns: []CategoryPattern{
			{Category: CategoryChara, Markers: []string{"【KoiKatuCharaSun】"}},
		}},
		GameDefinition{Code: "AI", Patterns: []CategoryPattern{
			{Category: CategoryChara, Markers: []string{"【AIS_Chara】"}},
			{Category: "coordinate", Markers: []string{"【AIS_Clothes】"}},
			{Category: CategoryScene, Markers: []string{"【StudioNEOV2】"}},
			{Category: "housing", Markers: []string{"【AIS_Housing】"}},
		}},
		GameDefinition{Code: "EC", Patterns: []CategoryPattern{
			{Category: CategoryChara, Markers: []string{"EroMakeChara"}},
			{Category: "hscene", Markers: []string{"EroMakeHScene"}},
			{Category: "map", Markers: []string{"EroMakeMap"}},
			{Category: "pose", Markers: []string{"EroMakePose"}},
		}},
		GameDefinition{Code: "HS", Patterns: []CategoryPattern{
			{Category: "female", Markers: []string{"【HoneySelectCharaFemale】"}},
			{Category: "male", Markers: []string{"【HoneySelectCharaMale】"}},
			{Category: CategoryScene, Markers: []string{"【-neo-】"}},
		}},
		GameDefinition{Code: "PH", Patterns: []CategoryPattern{
			{Category: "female", Markers: []string{"【PlayHome_Female】"}},
			{Category: "male", Markers: []string{"【PlayHome_Male】"}},
			{Category: CategoryScene, Markers: []string{"【PHStudio】"}},
		}},
		GameDefinition{Code: "SBPR", Patterns: []CategoryPattern{
			{Category: "female", Markers: []string{"【PremiumResortCharaFemale】"}},
			{Category: "male", Markers: []string{"【PremiumResortCharaMale】"}},
		}},
		GameDefinition{Code: "HC", Patterns: []CategoryPattern{
			{Category: CategoryChara, Markers: []string{"【HCChara】"}},
		}},
		GameDefinition{Code: "AA2", Patterns: []CategoryPattern{
			// AA2 的元数据是 Shift-JIS 文本；标记按可读形式声明，构造时转码成原始字节。
			{Category: CategoryChara, Markers: []string{mustShiftJIS("【エディット】")}},
			{Category: CategoryScene, Markers: []string{"\x00SCENE\x00"}},
		}},
		GameDefinition{Code: "RG", Patterns: []CategoryPattern{
			{Category: CategoryChara, Markers: []string{"【RG_Chara】"}},
			{Category: CategoryScene, Markers: []string{"【RoomStudio】"}},
		}},
	)
	if err != nil {
		// 内置表是编译期常量的延伸；构造失败只能是表本身写错。
		panic(fmt.Sprintf("registry: 内置表非法：%v", err))
	}
	return r
}

func mustShiftJIS(s string) string {
	b, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		panic(fmt.Sprintf("registry: Shift-JIS 转码失败：%q：%v", s, err))
	}
	return string(b)
}
