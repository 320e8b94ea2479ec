// Package web embeds the browser chat UI.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
)

//go:embed static
var embedded embed.FS

// FileSystem serves dir when it holds an index.html, otherwise the embedded UI.
func FileSystem(dir string) http.FileSystem {
	if dir != "" && fileExists(filepath.Join(dir, "index.html")) {
		return http.Dir(dir)
	}
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return http.FS(sub)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
