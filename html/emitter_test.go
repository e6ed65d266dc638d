package html

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tweers/format"
	"tweers/twee"
)

func TestEmitMinimalSugarCube(t *testing.T) {
	passages := []twee.Passage{
		{Name: "StoryTitle", Content: "Demo"},
		{Name: "StoryData", Content: `{"ifid":"AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"}`},
		{Name: "Start", Content: "Hello"},
	}
	data := twee.StoryData{Name: "Demo", Ifid: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA", Format: "SugarCube", FormatVersion: "2.37.3"}
	fmtInfo := format.Info{Name: "SugarCube", Version: "2.37.3", Source: "<html>{{STORY_NAME}}{{STORY_DATA}}</html>"}

	out, err := Emit(passages, data, fmtInfo, "Start", false)
	require.NoError(t, err)
	require.Contains(t, out, `name="Demo"`)
	require.Contains(t, out, `ifid="AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"`)
	require.Contains(t, out, `format="SugarCube"`)
	require.Contains(t, out, `format-version="2.37.3"`)
	require.Contains(t, out, `startnode="1"`)
	require.Contains(t, out, `<tw-passagedata pid="1" name="Start"`)
	require.Contains(t, out, ">Hello</tw-passagedata>")
}

func TestEmitChineseTags(t *testing.T) {
	passages := []twee.Passage{
		{Name: "房间", Tags: []string{"事件", "重要"}, Content: "内容"},
	}
	data := twee.StoryData{Ifid: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"}
	fmtInfo := format.Info{Source: "{{STORY_DATA}}"}

	out, err := Emit(passages, data, fmtInfo, "房间", false)
	require.NoError(t, err)
	require.Contains(t, out, `name="房间"`)
	require.Contains(t, out, `tags="事件 重要"`)
}

func TestEmitEscapesAttributesAndContent(t *testing.T) {
	passages := []twee.Passage{
		{Name: `A"B<C`, Content: "x & y < z"},
	}
	data := twee.StoryData{Ifid: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"}
	fmtInfo := format.Info{Source: "{{STORY_DATA}}"}

	out, err := Emit(passages, data, fmtInfo, `A"B<C`, false)
	require.NoError(t, err)
	require.Contains(t, out, "A&quot;B&lt;C")
	require.Contains(t, out, "x &amp; y &lt; z")
	require.NotContains(t, out, "'")
}

func TestEmitMissingStartPassage(t *testing.T) {
	passages := []twee.Passage{{Name: "Start", Content: "hi"}}
	data := twee.StoryData{Ifid: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"}
	fmtInfo := format.Info{Source: "{{STORY_DATA}}"}

	_, err := Emit(passages, data, fmtInfo, "Nonexistent", false)
	require.Error(t, err)
}

func TestEmitDeterministic(t *testing.T) {
	passages := []twee.Passage{
		{Name: "Start", Content: "Hello"},
		{Name: "Second", Content: "World"},
	}
	data := twee.StoryData{Ifid: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"}
	fmtInfo := format.Info{Source: "{{STORY_DATA}}"}

	out1, err1 := Emit(passages, data, fmtInfo, "Start", false)
	out2, err2 := Emit(passages, data, fmtInfo, "Start", false)
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, out1, out2)
	require.True(t, strings.Count(out1, "<tw-passagedata") == 2)
}
