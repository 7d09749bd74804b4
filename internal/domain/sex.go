package domain

// Sex 是卡片元数据中 sex 哨兵之后单字节编码的解码结果。
// 编码域固定：0x00=male，0x01=female；其他字节一律视为不可识别。
type Sex int

const (
	SexUnknown Sex = iota
	SexMale
	SexFemale
)

// ParseSexByte 解码 sex 哨兵后紧跟的单字节。
// 不可识别的字节返回 (SexUnknown, false)，调用方应继续等待下一个哨兵。
func ParseSexByte(b byte) (Sex, bool) {
	switch b {
	case 0x00:
		return SexMale, true
	case 0x01:
		return SexFemale, true
	default:
		return SexUnknown, false
	}
}

// Name 返回用于目录名与 report 输出的稳定名称；未知返回空串。
func (s Sex) Name() string {
	switch s {
	case SexMale:
		return "male"
	case SexFemale:
		return "female"
	default:
		return ""
	}
}
