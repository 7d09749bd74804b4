package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// 扩展名剥离后的 basename 上可选的 " (N)" 去重后缀。
var suffixRE = regexp.MustCompile(`^(.*) \(([0-9]+)\)$`)

// UnusedPath 在 dir 下为 name 找一个不存在的路径。
//
// - dir/name 不存在：原样返回（renamed=false）
// - 已存在：按 "{base} (N){ext}" 递增探测，返回第一个不存在的候选
// - name 本身已带 " (N)" 后缀：剥离后缀并从 N+1 继续编号
//   （对已去重的名字再去重是“继续计数”，不是叠加后缀）
//
// 探测只以文件系统现状为准，不保存任何状态；与并发命名者之间的
// TOCTOU 竞态由调用方用 DirLocks 消除。
func UnusedPath(dir, name string) (path string, renamed bool, err error) {
	path = filepath.Join(dir, name)
	exists, err := lexists(path)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return path, false, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	index := 1
	if m := suffixRE.FindStringSubmatch(base); m != nil {
		if n, convErr := strconv.Atoi(m[2]); convErr == nil {
			base = m[1]
			index = n + 1
		}
	}

	// index 单调递增，文件系统有限：必然终止。
	for {
		cand := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, index, ext))
		exists, err := lexists(cand)
		if err != nil {
			return "", false, err
		}
		if !exists {
			return cand, true, nil
		}
		index++
	}
}

func lexists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
