package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeStrictJSON(t *testing.T) {
	src := `window.storyFormat({"name":"SugarCube","version":"2.37.3","source":"<html>{{STORY_NAME}}{{STORY_DATA}}</html>"})`
	info, err := ParseEnvelope(src)
	require.NoError(t, err)
	require.Equal(t, "SugarCube", info.Name)
	require.Equal(t, "2.37.3", info.Version)
	require.Contains(t, info.Source, "{{STORY_DATA}}")
}

func TestParseEnvelopeTolerantFallback(t *testing.T) {
	src := `window.storyFormat({
		"name": "Harlowe",
		"version": "3.3.7",
		"source": "<html>{{STORY_DATA}}</html>",
		"setup": function(){ return {a: [1,2,{b:3}]}; }
	})`
	info, err := ParseEnvelope(src)
	require.NoError(t, err)
	require.Equal(t, "Harlowe", info.Name)
	require.Equal(t, "<html>{{STORY_DATA}}</html>", info.Source)
}

func TestParseEnvelopeMissingCall(t *testing.T) {
	_, err := ParseEnvelope("var x = 1;")
	require.Error(t, err)
}

func TestParseEnvelopeMissingSource(t *testing.T) {
	src := `window.storyFormat({"name":"Broken","version":"1.0.0"})`
	_, err := ParseEnvelope(src)
	require.Error(t, err)
}

func TestExtractBalancedBracesHandlesStrings(t *testing.T) {
	s, err := extractBalancedBraces(`{"a":"}"}`)
	require.NoError(t, err)
	require.Equal(t, `{"a":"}"}`, s)
}
