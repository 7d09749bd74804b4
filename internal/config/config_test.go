package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEffective_CLIPathWithoutConfigFile(t *testing.T) {
	root := t.TempDir()

	eff, err := LoadEffective(root, CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("CLI 提供 path 时配置文件可选，不期望错误：%v", err)
	}
	if eff.Path != filepath.Clean(root) {
		t.Fatalf("期望 path=%q，实际=%q", root, eff.Path)
	}
	if want := filepath.Join(root, "out"); eff.Out != want {
		t.Fatalf("期望默认 out=%q，实际=%q", want, eff.Out)
	}
	if eff.Apply {
		t.Fatalf("默认必须是 dry-run")
	}
	if eff.Recurse {
		t.Fatalf("默认不递归")
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("期望默认并发 %d，实际 %d", DefaultConcurrency, eff.Concurrency)
	}
}

func TestLoadEffective_NoArgsRequiresConfigFile(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %s，实际 err=%v", ErrCodeNotFound, err)
	}
}

func TestLoadEffective_NoArgsConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeConfig(t, cwd, `{"out": "sorted"}`)

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("期望 %s，实际 err=%v", ErrCodeMissingPath, err)
	}
}

func TestLoadEffective_ConfigFileProvidesEverything(t *testing.T) {
	cwd := t.TempDir()
	cards := filepath.Join(cwd, "cards")
	if err := os.MkdirAll(cards, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeConfig(t, cwd, `{
		"path": "cards",
		"out": "sorted",
		"game": "KKS",
		"label": "mods",
		"recurse": true,
		"apply": true,
		"concurrency": 8,
		"exclude_dirs": ["temp"]
	}`)

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != cards {
		t.Fatalf("path 应相对 cwd 解析：期望 %q，实际 %q", cards, eff.Path)
	}
	if want := filepath.Join(cards, "sorted"); eff.Out != want {
		t.Fatalf("out 应相对 path 解析：期望 %q，实际 %q", want, eff.Out)
	}
	if eff.Game != "KKS" || eff.Label != "mods" {
		t.Fatalf("game/label 未透传：%+v", eff)
	}
	if !eff.Recurse || !eff.Apply {
		t.Fatalf("recurse/apply 未透传：%+v", eff)
	}
	if eff.Concurrency != 8 {
		t.Fatalf("期望并发 8，实际 %d", eff.Concurrency)
	}
	if len(eff.ExcludeDirs) != 1 || eff.ExcludeDirs[0] != "temp" {
		t.Fatalf("exclude_dirs 未透传：%+v", eff.ExcludeDirs)
	}
}

func TestLoadEffective_CLIOverridesConfig(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"apply": true, "game": "KK", "out": "sorted"}`)

	// 显式 --apply=false 必须能压住 config.apply=true。
	eff, err := LoadEffective(root, CLIArgs{
		Path:     root,
		Apply:    false,
		ApplySet: true,
		Game:     "AI",
		GameSet:  true,
		Out:      "elsewhere",
		OutSet:   true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Apply {
		t.Fatalf("CLI --apply=false 必须覆盖配置文件")
	}
	if eff.Game != "AI" {
		t.Fatalf("CLI game 必须覆盖配置文件：%q", eff.Game)
	}
	if want := filepath.Join(filepath.Clean(root), "elsewhere"); eff.Out != want {
		t.Fatalf("CLI out 必须覆盖配置文件：期望 %q，实际 %q", want, eff.Out)
	}
}

func TestLoadEffective_UnknownGameRejected(t *testing.T) {
	root := t.TempDir()

	_, err := LoadEffective(root, CLIArgs{Path: root, Game: "XX", GameSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("未知游戏代码必须在启动前拒绝：err=%v", err)
	}
}

func TestLoadEffective_BadLabelRejected(t *testing.T) {
	root := t.TempDir()

	cases := []string{"a/b", `a\b`, "..", "."}
	for _, label := range cases {
		_, err := LoadEffective(root, CLIArgs{Path: root, Game: "KK", GameSet: true, Label: label, LabelSet: true})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("label=%q 必须被拒绝：err=%v", label, err)
		}
	}
}

func TestLoadEffective_LabelWithoutGameRejected(t *testing.T) {
	root := t.TempDir()

	_, err := LoadEffective(root, CLIArgs{Path: root, Label: "mods", LabelSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("没有 game 的 label 没有意义，必须拒绝：err=%v", err)
	}
}

func TestLoadEffective_MalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{not json`)

	_, err := LoadEffective(root, CLIArgs{Path: root})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %s，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_ConcurrencyClamped(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"concurrency": 999}`)

	eff, err := LoadEffective(root, CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 32 {
		t.Fatalf("期望并发截断到 32，实际 %d", eff.Concurrency)
	}

	writeConfig(t, root, `{"concurrency": -3}`)
	eff, err = LoadEffective(root, CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 1 {
		t.Fatalf("期望并发提升到 1，实际 %d", eff.Concurrency)
	}
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "cardorg.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("写配置文件失败：%v", err)
	}
}
