package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schneckenschnabel/CardOrganizer/internal/app/run"
	"github.com/schneckenschnabel/CardOrganizer/internal/classify"
	"github.com/schneckenschnabel/CardOrganizer/internal/config"
	"github.com/schneckenschnabel/CardOrganizer/internal/domain"
	"github.com/schneckenschnabel/CardOrganizer/internal/registry"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:       ra.Path,
		Out:        ra.Out,
		OutSet:     ra.OutSet,
		Game:       ra.Game,
		GameSet:    ra.GameSet,
		Label:      ra.Label,
		LabelSet:   ra.LabelSet,
		Recurse:    ra.Recurse,
		RecurseSet: ra.RecurseSet,
		Apply:      ra.Apply,
		ApplySet:   ra.ApplySet,
	})
	if err != nil {
		emitReport(reportForStartupError(cwdAbs, ra, config.Code(err), err.Error()))
		return 1
	}

	// 注册表冲突必须在碰任何文件之前失败（这是表写错了，不是某个文件的问题）。
	aut, err := classify.NewAutomaton(registry.Default())
	if err != nil {
		emitReport(reportForStartupError(eff.Path, ra, domain.ErrCodeRegistryConflict, err.Error()))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, aut, obs)

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Path       string
	Out        string
	OutSet     bool
	Game       string
	GameSet    bool
	Label      string
	LabelSet   bool
	Recurse    bool
	RecurseSet bool
	Apply      bool
	ApplySet   bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	takeValue := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	parseBool := func(name, v string) (bool, error) {
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
		}
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--out":
			v, err := takeValue(&i, "--out")
			if err != nil {
				return runArgs{}, err
			}
			ra.Out = v
			ra.OutSet = true
		case strings.HasPrefix(a, "--out="):
			ra.Out = strings.TrimPrefix(a, "--out=")
			ra.OutSet = true
		case a == "--game":
			v, err := takeValue(&i, "--game")
			if err != nil {
				return runArgs{}, err
			}
			ra.Game = v
			ra.GameSet = true
		case strings.HasPrefix(a, "--game="):
			ra.Game = strings.TrimPrefix(a, "--game=")
			ra.GameSet = true
		case a == "--label":
			v, err := takeValue(&i, "--label")
			if err != nil {
				return runArgs{}, err
			}
			ra.Label = v
			ra.LabelSet = true
		case strings.HasPrefix(a, "--label="):
			ra.Label = strings.TrimPrefix(a, "--label=")
			ra.LabelSet = true
		case a == "--recurse":
			ra.Recurse = true
			ra.RecurseSet = true
		case strings.HasPrefix(a, "--recurse="):
			v, err := parseBool("--recurse", strings.TrimPrefix(a, "--recurse="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Recurse = v
			ra.RecurseSet = true
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v, err := parseBool("--apply", strings.TrimPrefix(a, "--apply="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Apply = v
			ra.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  cardorg run [path] [--out DIR] [--game CODE] [--label NAME] [--recurse[=true|false]] [--apply[=true|false]]

命令：
  run    扫描并整理卡片文件（默认 dry-run）

使用 "cardorg run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  cardorg run [path] [--out DIR] [--game CODE] [--label NAME] [--recurse[=true|false]] [--apply[=true|false]]

参数：
  --out      输出根目录（默认 <path>/out；相对路径以 path 为基准）
  --game     限定模式：只接受该游戏（及其旧版子集）的卡，输出路径不含游戏代码段
  --label    限定模式下嵌套在分类下的子目录名（单段；需要同时指定 --game）
  --recurse  递归扫描子目录（默认只扫顶层）
  --apply    执行移动（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true
  -h, --help 显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：moved=%d planned=%d unclassified=%d failed=%d\n",
			rr.Summary.Moved, rr.Summary.Planned, rr.Summary.Unclassified, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed {
					continue
				}
				key := it.Src
				if key == "" {
					key = "<unknown>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：moved=%d planned=%d unclassified=%d failed=%d\n",
		rr.Summary.Moved, rr.Summary.Planned, rr.Summary.Unclassified, rr.Summary.Failed,
	)
}

func reportForStartupError(path string, ra runArgs, code, msg string) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       path,
		DryRun:     !(ra.ApplySet && ra.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.FileItem{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  msg,
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这一行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	fmt.Fprintf(w, "out: %s\n", eff.Out)
}
