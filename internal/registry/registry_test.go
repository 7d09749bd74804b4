package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsDuplicateGameCode(t *testing.T) {
	_, err := New(
		GameDefinition{Code: "KK", Patterns: []CategoryPattern{{Category: CategoryChara, Markers: []string{"a"}}}},
		GameDefinition{Code: "KK", Patterns: []CategoryPattern{{Category: CategoryScene, Markers: []string{"b"}}}},
	)
	require.Error(t, err)
}

func TestNew_RejectsEmptyMarkerAndUnknownLegacy(t *testing.T) {
	_, err := New(
		GameDefinition{Code: "X", Patterns: []CategoryPattern{{Category: CategoryChara, Markers: []string{""}}}},
	)
	require.Error(t, err, "空字面量必须在构造时报错")

	_, err = New(
		GameDefinition{Code: "X", Legacy: []string{"Y"}, Patterns: []CategoryPattern{{Category: CategoryChara, Markers: []string{"a"}}}},
	)
	require.Error(t, err, "Legacy 引用未知游戏必须在构造时报错")
}

func TestAccepts_LegacySubset(t *testing.T) {
	r := Default()

	assert.True(t, r.Accepts("KK", "KK"))
	assert.True(t, r.Accepts("KKS", "KKS"))
	// KKS 的资料库兼容旧版 KK 卡。
	assert.True(t, r.Accepts("KKS", "KK"))
	assert.False(t, r.Accepts("KKS", "AI"))
	assert.False(t, r.Accepts("KK", "KKS"))
	assert.False(t, r.Accepts("NOPE", "KK"))
}

func TestDefault_Lookup(t *testing.T) {
	r := Default()

	g, ok := r.Lookup("KK")
	require.True(t, ok)
	assert.Equal(t, "KK", g.Code)

	_, ok = r.Lookup("NOPE")
	assert.False(t, ok)
}

func TestDefault_AA2MarkerIsRawShiftJIS(t *testing.T) {
	r := Default()
	g, ok := r.Lookup("AA2")
	require.True(t, ok)

	// 【エディット】 的 Shift-JIS 字节序列；分类扫描的是原始字节而不是解码后的文本。
	want := "\x81\x79\x83\x47\x83\x66\x83\x42\x83\x62\x83\x67\x81\x7a"
	assert.Equal(t, want, g.Patterns[0].Markers[0])
}
