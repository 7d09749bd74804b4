package run

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/schneckenschnabel/CardOrganizer/internal/classify"
	"github.com/schneckenschnabel/CardOrganizer/internal/config"
	"github.com/schneckenschnabel/CardOrganizer/internal/domain"
	"github.com/schneckenschnabel/CardOrganizer/internal/registry"
)

// cardBytes 构造一个最小的卡片文件：PNG 魔数 + 假载荷 + IEND + 追加元数据段。
func cardBytes(meta ...string) []byte {
	var b bytes.Buffer
	b.WriteString("\x89PNG\r\n\x1a\n")
	b.WriteString("fake-image-payload")
	b.WriteString("IEND\xae\x42\x60\x82")
	for _, m := range meta {
		b.WriteString("junk")
		b.WriteString(m)
	}
	return b.Bytes()
}

func mustAutomaton(t *testing.T) *classify.Automaton {
	t.Helper()
	aut, err := classify.NewAutomaton(registry.Default())
	if err != nil {
		t.Fatalf("构建自动机失败：%v", err)
	}
	return aut
}

func writeCard(t *testing.T, path string, meta ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, cardBytes(meta...), 0o644); err != nil {
		t.Fatalf("写入卡片失败：%v", err)
	}
}

func TestExecute_DryRun_NoWrites(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "card.png")
	writeCard(t, src, "【KoiKatuChara】", "sex\x01")

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Concurrency: 1,
	}, mustAutomaton(t))

	if _, err := os.Stat(filepath.Join(root, "out")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 out/，但 Stat err=%v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("dry-run 不应移动文件，但源文件不存在：%v", err)
	}

	if !rr.DryRun {
		t.Fatalf("报告必须标记 dry_run=true")
	}
	if len(rr.Items) != 1 {
		t.Fatalf("期望 1 个 item，实际 %d", len(rr.Items))
	}
	it := rr.Items[0]
	if it.Status != domain.StatusPlanned {
		t.Fatalf("期望 planned，实际 %+v", it)
	}
	if want := filepath.Join("KK", "female", "card.png"); it.Dst != want {
		t.Fatalf("期望 dst=%q，实际=%q", want, it.Dst)
	}
	if it.Game != "KK" || it.Category != "chara" || it.Sex != "female" {
		t.Fatalf("分类字段不符合预期：%+v", it)
	}
	if rr.Summary.Planned != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
}

func TestExecute_Apply_MovesIntoOut(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "card.png")
	writeCard(t, src, "【KoiKatuChara】", "sex\x01")

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Apply:       true,
		Concurrency: 2,
	}, mustAutomaton(t))

	dst := filepath.Join(root, "out", "KK", "female", "card.png")
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("期望文件落在 %q：%v", dst, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件应已被移走，Stat err=%v", err)
	}
	if rr.Summary.Moved != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	if rr.Items[0].Status != domain.StatusMoved || rr.Items[0].Renamed {
		t.Fatalf("item 不符合预期：%+v", rr.Items[0])
	}
}

func TestExecute_Apply_CollisionGetsSuffix(t *testing.T) {
	root := t.TempDir()
	writeCard(t, filepath.Join(root, "card.png"), "【KoiKatuChara】", "sex\x01")

	// 目标位置已被占用：必须落到 "card (1).png"，源文件不可覆盖目标。
	occupied := filepath.Join(root, "out", "KK", "female", "card.png")
	if err := os.MkdirAll(filepath.Dir(occupied), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(occupied, []byte("occupied"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Apply:       true,
		Concurrency: 1,
	}, mustAutomaton(t))

	if rr.Summary.Moved != 1 {
		t.Fatalf("期望 moved=1：%+v items=%+v", rr.Summary, rr.Items)
	}
	it := rr.Items[0]
	if want := filepath.Join("KK", "female", "card (1).png"); it.Dst != want {
		t.Fatalf("期望 dst=%q，实际=%q", want, it.Dst)
	}
	if !it.Renamed {
		t.Fatalf("冲突移动必须标记 renamed=true")
	}

	// 原占位文件保持不变。
	b, err := os.ReadFile(occupied)
	if err != nil || string(b) != "occupied" {
		t.Fatalf("占位文件被破坏：%q err=%v", b, err)
	}
}

func TestExecute_UnclassifiedStaysInPlace(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "junk.png")
	writeCard(t, src) // 有 IEND 但尾部没有任何已知标记

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Apply:       true,
		Concurrency: 1,
	}, mustAutomaton(t))

	if _, err := os.Stat(src); err != nil {
		t.Fatalf("不可分类文件必须原地保留：%v", err)
	}
	if rr.Summary.Unclassified != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	if rr.Items[0].Dst != "" {
		t.Fatalf("不可分类 item 不应有 dst：%+v", rr.Items[0])
	}
}

func TestExecute_ReadFailureIsolated(t *testing.T) {
	root := t.TempDir()
	writeCard(t, filepath.Join(root, "good.png"), "【KoiKatuChara】", "sex\x00")

	// 悬空符号链接：扫描能看到（Lstat 语义），读取会失败。
	bad := filepath.Join(root, "bad.png")
	if err := os.Symlink(filepath.Join(root, "missing"), bad); err != nil {
		t.Skipf("当前环境不支持 symlink：%v", err)
	}

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Apply:       true,
		Concurrency: 2,
	}, mustAutomaton(t))

	// 单条失败不影响其他文件。
	if rr.Summary.Moved != 1 || rr.Summary.Failed != 1 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	for _, it := range rr.Items {
		if it.Src == "bad.png" {
			if it.Status != domain.StatusFailed || it.ErrorCode != domain.ErrCodeReadFailed {
				t.Fatalf("期望 read_failed，实际 %+v", it)
			}
		}
	}
}

func TestExecute_RestrictedMode(t *testing.T) {
	root := t.TempDir()
	writeCard(t, filepath.Join(root, "kk.png"), "【KoiKatuChara】", "sex\x01")
	writeCard(t, filepath.Join(root, "ai.png"), "【AIS_Chara】", "sex\x01")

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Game:        "KKS",
		Label:       "mods",
		Apply:       true,
		Concurrency: 1,
	}, mustAutomaton(t))

	// KK 是 KKS 的旧版子集：接受；AI 不被接受，原地保留。
	if rr.Summary.Moved != 1 || rr.Summary.Unclassified != 1 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	dst := filepath.Join(root, "out", "chara", "female", "mods", "kk.png")
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("期望限定模式路径 %q：%v", dst, err)
	}
	if _, err := os.Stat(filepath.Join(root, "ai.png")); err != nil {
		t.Fatalf("被拒绝的卡必须原地保留：%v", err)
	}
}

func TestExecute_SceneCardGoesToStudioTree(t *testing.T) {
	root := t.TempDir()
	// scene 标记先出现，角色标记后出现：scene 粘滞必须获胜。
	writeCard(t, filepath.Join(root, "s.png"), "【KStudio】", "【KoiKatuChara】")

	rr := Execute(context.Background(), config.EffectiveConfig{
		Path:        root,
		Out:         filepath.Join(root, "out"),
		Game:        "KK",
		Apply:       true,
		Concurrency: 1,
	}, mustAutomaton(t))

	if rr.Summary.Moved != 1 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	dst := filepath.Join(root, "out", "studio", "scene", "s.png")
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("期望 scene 卡落在 %q：%v", dst, err)
	}
}
