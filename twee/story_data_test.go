package twee

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveStoryDataStrict(t *testing.T) {
	passages := []Passage{
		{Name: "StoryData", Content: `{"ifid":"AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA","format":"SugarCube","format-version":"2.37.3"}`},
	}
	sd, warnings, err := ResolveStoryData(passages)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA", sd.Ifid)
	require.Equal(t, "SugarCube", sd.Format)
}

func TestResolveStoryDataSkipsEmptyFirstFile(t *testing.T) {
	passages := []Passage{
		{Name: "Start", SourceFile: "a.twee", Content: "Hello"},
		{Name: "StoryData", SourceFile: "b.twee", Content: `{"ifid":"AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA","format":"Harlowe","format-version":"3.3.7"}`},
	}
	sd, _, err := ResolveStoryData(passages)
	require.NoError(t, err)
	require.Equal(t, "Harlowe", sd.Format)
}

func TestResolveStoryDataMissing(t *testing.T) {
	_, _, err := ResolveStoryData([]Passage{{Name: "Start", Content: "Hi"}})
	require.Error(t, err)
}

func TestResolveStoryDataLenientFallback(t *testing.T) {
	passages := []Passage{
		{Name: "StoryData", Content: `{"ifid":"AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA","format":"Harlowe", format-version: "3.3.7",}`},
	}
	sd, warnings, err := ResolveStoryData(passages)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.Equal(t, "StoryDataParseFailed", warnings[0].Kind)
	require.Equal(t, "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA", sd.Ifid)
}

func TestStoryDataValidate(t *testing.T) {
	require.Error(t, StoryData{}.Validate())
	require.Error(t, StoryData{Ifid: "not-a-uuid"}.Validate())
	require.NoError(t, StoryData{Ifid: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"}.Validate())
}

func TestResolveStartPrecedence(t *testing.T) {
	passages := map[string]Passage{
		"Start":  {Name: "Start"},
		"Custom": {Name: "Custom"},
	}
	name, err := ResolveStart(passages, "Custom", "Start")
	require.NoError(t, err)
	require.Equal(t, "Custom", name)

	name, err = ResolveStart(passages, "", "Start")
	require.NoError(t, err)
	require.Equal(t, "Start", name)

	name, err = ResolveStart(passages, "", "")
	require.NoError(t, err)
	require.Equal(t, "Start", name)
}

func TestResolveStartRejectsReserved(t *testing.T) {
	passages := map[string]Passage{
		"StoryData": {Name: "StoryData"},
	}
	_, err := ResolveStart(passages, "StoryData", "")
	require.Error(t, err)
}

func TestResolveStartMissing(t *testing.T) {
	_, err := ResolveStart(map[string]Passage{}, "", "")
	require.Error(t, err)
}
