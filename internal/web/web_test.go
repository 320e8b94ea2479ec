package web

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemEmbedded(t *testing.T) {
	fsys := FileSystem("")

	for _, name := range []string{"/index.html", "/app.js", "/styles.css"} {
		f, err := fsys.Open(name)
		require.NoError(t, err, name)
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		_ = f.Close()
		assert.NotEmpty(t, b, name)
	}
}

func TestFileSystemDiskOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("custom"), 0o644))

	f, err := FileSystem(dir).Open("/index.html")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(b))
}

func TestFileSystemFallsBackWithoutIndex(t *testing.T) {
	f, err := FileSystem(t.TempDir()).Open("/app.js")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(b), "/api/sessions")
}

func TestAppSubmitKeepsInputConsistent(t *testing.T) {
	f, err := FileSystem("").Open("/app.js")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	js := string(b)

	start := strings.Index(js, "async function submit(")
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(js[start:], "\n  }\n")
	require.Greater(t, end, 0)
	submit := js[start : start+end]

	// A pending input report must not write the sent text back.
	assert.Contains(t, submit, "clearTimeout(inputTimer)")
	// The typed text comes back when the send fails.
	assert.Contains(t, submit, "input.value = text")
}
