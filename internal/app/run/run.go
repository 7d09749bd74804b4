package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schneckenschnabel/CardOrganizer/internal/app/planner"
	"github.com/schneckenschnabel/CardOrganizer/internal/classify"
	"github.com/schneckenschnabel/CardOrganizer/internal/config"
	"github.com/schneckenschnabel/CardOrganizer/internal/domain"
	"github.com/schneckenschnabel/CardOrganizer/internal/infra/fsx"
	"github.com/schneckenschnabel/CardOrganizer/internal/scan"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, aut *classify.Automaton) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, aut, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, aut *classify.Automaton, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Out:       eff.Out,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.FileItem, 0, 128),
	}

	scanStarted := time.Now()
	files, err := scan.ScanCards(eff.Path, eff.Out, eff.Recurse, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	scanDur := time.Since(scanStarted)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files": len(files),
		}, scanDur)
	}

	// 执行阶段：按文件并发（worker pool）。各文件完全独立。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_files": len(files),
		}, 0)
	}

	// 目录锁常开：探测空闲名字与落地移动必须在同一把锁内，
	// 否则两个 worker 会抢到同一个候选名。
	locks := fsx.NewDirLocks()

	type execResult struct {
		res domain.FileItem
		dur time.Duration
	}

	jobs := make(chan domain.CardFile)
	results := make(chan execResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				oneStarted := time.Now()
				r := execOne(ctx, eff, aut, locks, f)
				results <- execResult{res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(files), it.res, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func syntheticFailed(code, msg string) domain.FileItem {
	return domain.FileItem{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// execOne 处理单个文件：读取 → 分类 → 目标解析 → （dry-run 只探测 / apply 移动）。
// 任何失败只影响本条 item。
func execOne(ctx context.Context, eff config.EffectiveConfig, aut *classify.Automaton, locks *fsx.DirLocks, f domain.CardFile) domain.FileItem {
	item := domain.FileItem{Src: f.RelPath}

	if err := ctx.Err(); err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeIOFailed
		item.ErrorMsg = fmt.Sprintf("已取消：%v", err)
		return item
	}

	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeReadFailed
		item.ErrorMsg = err.Error()
		return item
	}

	sr := aut.Classify(data)
	item.Game = sr.Game
	item.Category = sr.Category
	item.Sex = sr.Sex.Name()

	relDir, ok := planner.Resolve(aut.Registry(), sr, eff.Game, eff.Label)
	if !ok {
		item.Status = domain.StatusUnclassified
		if sr.Classified() {
			// 卡片本身能识别，只是不属于本次限定的游戏。
			item.ErrorMsg = fmt.Sprintf("%s 卡不被 %s 限定接受", sr.Game, eff.Game)
		}
		return item
	}

	name := f.Base + f.Ext
	destDir := filepath.Join(eff.Out, relDir)

	if !eff.Apply {
		// dry-run：只探测命名，不创建目录、不移动。
		// 目标目录不存在时探测结果就是“无冲突”。
		mv, err := planMove(destDir, name, f.AbsPath)
		if err != nil {
			item.Status = domain.StatusFailed
			item.ErrorCode = domain.ErrCodeIOFailed
			item.ErrorMsg = err.Error()
			return item
		}
		item.Dst = filepath.Join(relDir, filepath.Base(mv.DstAbs))
		item.Renamed = mv.Renamed
		item.Status = domain.StatusPlanned
		return item
	}

	// apply：探测与移动在同一把目录锁内完成。
	unlock := locks.Lock(destDir)
	defer unlock()

	if err := fsx.EnsureDir(destDir); err != nil {
		item.Status = domain.StatusFailed
		if fsx.IsPathTypeConflict(err) {
			item.ErrorCode = domain.ErrCodeTargetConflict
		} else {
			item.ErrorCode = domain.ErrCodeIOFailed
		}
		item.ErrorMsg = err.Error()
		return item
	}

	mv, err := planMove(destDir, name, f.AbsPath)
	if err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeIOFailed
		item.ErrorMsg = err.Error()
		return item
	}

	if err := fsx.Rename(mv.SrcAbs, mv.DstAbs); err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeMoveFailed
		item.ErrorMsg = err.Error()
		return item
	}

	item.Dst = filepath.Join(relDir, filepath.Base(mv.DstAbs))
	item.Renamed = mv.Renamed
	item.Status = domain.StatusMoved
	return item
}

// planMove 在 destDir 下探测空闲名字并构造移动计划（dry-run 与 apply 共用）。
func planMove(destDir, name, srcAbs string) (domain.MovePlan, error) {
	dstAbs, renamed, err := fsx.UnusedPath(destDir, name)
	if err != nil {
		return domain.MovePlan{}, err
	}
	return domain.MovePlan{SrcAbs: srcAbs, DstAbs: dstAbs, Renamed: renamed}, nil
}
