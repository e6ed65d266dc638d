package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestServer() *Server {
	return NewServer(Config{Port: 0, EnableCORS: true, Debug: false})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func storyFixture(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, dir+"/story.twee", `:: StoryData
{"ifid":"AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA","format":"Harlowe","format-version":"3.3.7"}

:: Start
Go to [[End]]

:: End
Done
`)
	writeFile(t, dir+"/story-format/harlowe-3.3.7/format.js",
		`window.storyFormat({"name":"Harlowe","version":"3.3.7","source":"{{STORY_DATA}}"})`)
	return dir
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestParseEndpoint(t *testing.T) {
	s := newTestServer()
	dir := storyFixture(t)
	rec := doJSON(t, s, http.MethodPost, "/api/parse", map[string]any{"source_dir": dir})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
	require.Contains(t, rec.Body.String(), "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA")
}

func TestBuildEndpoint(t *testing.T) {
	s := newTestServer()
	dir := storyFixture(t)
	out := dir + "/out.html"
	rec := doJSON(t, s, http.MethodPost, "/api/build", map[string]any{
		"source_dir":    dir,
		"exec_dir":      dir,
		"output_path":   out,
		"start_passage": "Start",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(out)
	require.NoError(t, err)
}

func TestBuildEndpointMissingSourceDir(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/api/build", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// listPassages/getPassage take the source directory as a single path
// segment, so these tests cd into the fixture and address it as ".".
func TestListPassagesEndpoint(t *testing.T) {
	s := newTestServer()
	dir := storyFixture(t)
	chdir(t, dir)
	rec := doJSON(t, s, http.MethodGet, "/api/passages/.", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Start")
	require.Contains(t, rec.Body.String(), "End")
}

func TestGetPassageEndpoint(t *testing.T) {
	s := newTestServer()
	dir := storyFixture(t)
	chdir(t, dir)
	rec := doJSON(t, s, http.MethodGet, "/api/passages/./Start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "End")
}

func TestGetPassageEndpointNotFound(t *testing.T) {
	s := newTestServer()
	dir := storyFixture(t)
	chdir(t, dir)
	rec := doJSON(t, s, http.MethodGet, "/api/passages/./Nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReachabilityEndpoint(t *testing.T) {
	s := newTestServer()
	dir := t.TempDir()
	writeFile(t, dir+"/story.twee", `:: Start
[[End]]

:: End
done

:: Orphaned
nobody links here
`)
	rec := doJSON(t, s, http.MethodPost, "/api/diagnostics/reachability", map[string]any{
		"source_dir": dir,
		"start":      "Start",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Orphaned")
}

func TestSimulateEndpoint(t *testing.T) {
	s := newTestServer()
	dir := t.TempDir()
	writeFile(t, dir+"/story.twee", `:: Start
[[End]]

:: End
done
`)
	rec := doJSON(t, s, http.MethodPost, "/api/diagnostics/simulate", map[string]any{
		"source_dir": dir,
		"path":       []string{"Start", "End"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}

func TestWatchLifecycle(t *testing.T) {
	s := newTestServer()
	dir := storyFixture(t)

	rec := doJSON(t, s, http.MethodGet, "/api/watch/status", nil)
	require.Contains(t, rec.Body.String(), `"running":false`)

	rec = doJSON(t, s, http.MethodPost, "/api/watch/start", map[string]any{
		"source_dir":  dir,
		"exec_dir":    dir,
		"output_path": dir + "/out.html",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/watch/status", nil)
	require.Contains(t, rec.Body.String(), `"running":true`)

	rec = doJSON(t, s, http.MethodPost, "/api/watch/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/watch/status", nil)
	require.Contains(t, rec.Body.String(), `"running":false`)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
