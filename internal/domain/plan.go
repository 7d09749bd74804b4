package domain

// MovePlan 规划一次文件移动（只描述 src/dst；真正执行必须遵守“移动最后一步”）。
type MovePlan struct {
	SrcAbs string
	DstAbs string

	// Renamed 表示 dst 带了 " (N)" 去重后缀。
	Renamed bool
}
