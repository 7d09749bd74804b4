package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schneckenschnabel/CardOrganizer/internal/registry"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 cardorg.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultOutDirName 是输出根目录的默认名（相对扫描目录）。
	DefaultOutDirName = "out"
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
)

// CLIArgs 只包含 CLI 暴露的入口项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Path string

	Out    string
	OutSet bool

	Game    string
	GameSet bool

	Label    string
	LabelSet bool

	Recurse    bool
	RecurseSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 cardorg.json 的解析结构。
type FileConfig struct {
	Path        string   `json:"path"`
	Out         string   `json:"out"`
	Game        string   `json:"game"`
	Label       string   `json:"label"`
	Recurse     *bool    `json:"recurse"`
	Apply       *bool    `json:"apply"`
	Concurrency int      `json:"concurrency"`
	ExcludeDirs []string `json:"exclude_dirs"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，
// 不再做二次默认/优先级判断）。整个 run 期间不可变，跨 worker 共享。
type EffectiveConfig struct {
	Path string
	Out  string

	// Game 非空即为限定模式：只接受该游戏（及其 Legacy 子集）的卡，
	// 输出路径不再包含游戏代码段。
	Game string
	// Label 是限定模式下嵌套在目标分类下的子目录名（单段路径，可为空）。
	Label string

	Recurse bool
	Apply   bool

	Concurrency int
	ExcludeDirs []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按固定规则发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/cardorg.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/cardorg.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - out/game/label/recurse/apply：CLI > config > 默认
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/cardorg.json。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath = filepath.Join(absPath, "cardorg.json")

		fc, _, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		// 不存在也不报错。
		return merge(absPath, cli, fc, cfgPath)
	}

	// CLI 没给 path：必须读取 <cwd>/cardorg.json，且其中必须包含 path。
	cfgPath = filepath.Join(cwdAbs, "cardorg.json")
	var exists bool
	fc, exists, err = readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// out：CLI > config > 默认 <path>/out；相对路径以 path 为基准。
	out := DefaultOutDirName
	if cli.OutSet {
		out = cli.Out
	} else if strings.TrimSpace(fc.Out) != "" {
		out = fc.Out
	}
	absOut := absCleanFrom(absPath, out)
	if absOut == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("out 不能为空")}
	}

	// game：CLI > config > 空（非限定模式）。
	game := ""
	if cli.GameSet {
		game = cli.Game
	} else if strings.TrimSpace(fc.Game) != "" {
		game = fc.Game
	}
	game = strings.TrimSpace(game)
	if err := validateGame(game); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// label：CLI > config > 空；仅限定模式有意义。
	label := ""
	if cli.LabelSet {
		label = cli.Label
	} else if strings.TrimSpace(fc.Label) != "" {
		label = fc.Label
	}
	label = strings.TrimSpace(label)
	if err := validateLabel(label); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if label != "" && game == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("label 只在限定模式下有意义（需要同时指定 game）")}
	}

	// recurse：CLI > config > 默认 false（与历史行为一致：默认只扫顶层）。
	recurse := false
	if cli.RecurseSet {
		recurse = cli.Recurse
	} else if fc.Recurse != nil {
		recurse = *fc.Recurse
	}

	// apply：CLI > config > 默认 false（默认 dry-run）。
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围建议 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	return EffectiveConfig{
		Path:        absPath,
		Out:         absOut,
		Game:        game,
		Label:       label,
		Recurse:     recurse,
		Apply:       apply,
		Concurrency: concurrency,
		ExcludeDirs: append([]string(nil), fc.ExcludeDirs...),
	}, nil
}

func validateGame(game string) error {
	if game == "" {
		return nil
	}
	if _, ok := registry.Default().Lookup(game); !ok {
		return fmt.Errorf("未知游戏代码 %q（可用：%s）", game, strings.Join(knownGameCodes(), "、"))
	}
	return nil
}

func knownGameCodes() []string {
	games := registry.Default().Games
	codes := make([]string, 0, len(games))
	for _, g := range games {
		codes = append(codes, g.Code)
	}
	return codes
}

func validateLabel(label string) error {
	if label == "" {
		return nil
	}
	if label == "." || label == ".." {
		return fmt.Errorf("label 不能是 %q", label)
	}
	if strings.ContainsAny(label, `/\`) {
		return fmt.Errorf("label 必须是单段目录名，不能包含路径分隔符：%q", label)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	// Join 自带 Clean；p="." 解析为 base 本身。
	return filepath.Join(base, p)
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
