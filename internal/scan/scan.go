package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schneckenschnabel/CardOrganizer/internal/domain"
)

// ScanCards 扫描 root 下的 .png 卡片文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：输出目录 outDir（若位于 root 之下，避免重复搬运已整理的卡）
// - excludeDirs：来自配置文件，均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
// - recurse=false：只读 root 顶层，不进入子目录
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanCards(root, outDir string, recurse bool, excludeDirs []string) ([]domain.CardFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, outDir, excludeDirs)

	files := make([]domain.CardFile, 0, 128)

	collect := func(path string, d fs.DirEntry) error {
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".png" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.CardFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	}

	if recurse {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
			if isExcluded(path, excluded) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}
			return collect(path, d)
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(root, e.Name())
			if isExcluded(path, excluded) {
				continue
			}
			if err := collect(path, e); err != nil {
				return nil, err
			}
		}
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func buildExcluded(root, outDir string, excludeDirs []string) []string {
	excluded := make([]string, 0, 1+len(excludeDirs))
	if strings.TrimSpace(outDir) != "" {
		excluded = append(excluded, filepath.Clean(outDir))
	}

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
