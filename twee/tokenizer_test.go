package twee

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeBasicPassage(t *testing.T) {
	raw, err := Tokenize(":: Start\nHello\n")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "Start", raw[0].Name)
	require.Equal(t, "Hello", raw[0].Body)
}

func TestTokenizeTagsAndMetadata(t *testing.T) {
	raw, err := Tokenize(`:: Intro [script] {"position":"10,20","size":"100,200"}
console.log("hi");
`)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "Intro", raw[0].Name)
	require.Equal(t, []string{"script"}, raw[0].Tags)
	require.Equal(t, "10,20", raw[0].Position)
	require.Equal(t, "100,200", raw[0].Size)
}

func TestTokenizeNonASCIITags(t *testing.T) {
	raw, err := Tokenize(":: 房间 [事件 重要]\n内容\n")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "房间", raw[0].Name)
	require.Equal(t, []string{"事件", "重要"}, raw[0].Tags)
	require.Equal(t, "内容", raw[0].Body)
}

func TestTokenizeEscapedHeaderLine(t *testing.T) {
	raw, err := Tokenize(":: A\nline one\n\\:: not a header\nline two\n")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "line one\n:: not a header\nline two", raw[0].Body)
}

func TestTokenizeMultiplePassages(t *testing.T) {
	raw, err := Tokenize(":: A\nbody a\n\n:: B\nbody b\n")
	require.NoError(t, err)
	require.Len(t, raw, 2)
	require.Equal(t, "A", raw[0].Name)
	require.Equal(t, "B", raw[1].Name)
}

func TestTokenizeInteriorBlankLinesPreserved(t *testing.T) {
	raw, err := Tokenize(":: A\nline1\n\nline2\n")
	require.NoError(t, err)
	require.Equal(t, "line1\n\nline2", raw[0].Body)
}

func TestTokenizeLeadingTrailingBlankLinesStripped(t *testing.T) {
	raw, err := Tokenize(":: A\n\n\nline1\n\n\n")
	require.NoError(t, err)
	require.Equal(t, "line1", raw[0].Body)
}

func TestTokenizeEmptyNameFails(t *testing.T) {
	_, err := Tokenize(":: \nbody\n")
	require.Error(t, err)
}

func TestSplitTagsEscapedSpace(t *testing.T) {
	tags := splitTags(`foo\ bar baz`)
	require.Equal(t, []string{"foo bar", "baz"}, tags)
}
