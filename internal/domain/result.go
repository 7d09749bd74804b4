package domain

// ScanResult 是单个文件的分类结果。
//
// 约束：Game 或 Category 为空即代表“无法分类”；宁可跳过，也不允许猜测。
// 每个文件新建一份，绝不跨文件复用。
type ScanResult struct {
	Game     string
	Category string
	Sex      Sex
}

// Classified 报告该结果是否为确定分类。
func (r ScanResult) Classified() bool {
	return r.Game != "" && r.Category != ""
}
