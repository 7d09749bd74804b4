package fsx

import (
	"path/filepath"
	"sync"
)

// DirLocks 提供目录粒度的互斥。
//
// UnusedPath 的“探测 + 移动”不是原子的：两个 worker 可能各自探测到
// 同一个空闲名字。把探测与移动放进同一把目录锁即可消除该竞态；
// 单 worker 行为不受影响。
type DirLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewDirLocks() *DirLocks {
	return &DirLocks{m: map[string]*sync.Mutex{}}
}

// Lock 锁住 dir（按 Clean 后的路径聚合），返回解锁函数。
func (l *DirLocks) Lock(dir string) (unlock func()) {
	dir = filepath.Clean(dir)

	l.mu.Lock()
	dm, ok := l.m[dir]
	if !ok {
		dm = &sync.Mutex{}
		l.m[dir] = dm
	}
	l.mu.Unlock()

	dm.Lock()
	return dm.Unlock
}
