package frontend

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// NewStaticHandler serves files from root for requests no API route
// matched. Dotfiles and anything under a dot directory are never served.
func NewStaticHandler(root string) gin.HandlerFunc {
	return NewStaticFSHandler(os.DirFS(root))
}

// NewStaticFSHandler is NewStaticHandler over an arbitrary filesystem
func NewStaticFSHandler(fsys fs.FS) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			notFound(c)
			return
		}

		name, ok := resolve(fsys, c.Request.URL.Path)
		if !ok {
			notFound(c)
			return
		}

		if name == indexFile || strings.HasSuffix(name, "/"+indexFile) {
			c.Header("Cache-Control", "no-cache")
		} else {
			c.Header("Cache-Control", "public, max-age=3600")
		}

		slog.Debug("Serving static file", "path", c.Request.URL.Path, "file", name)
		http.ServeFileFS(c.Writer, c.Request, fsys, name)
	}
}

// resolve maps a URL path to a regular file in fsys. Directories resolve
// to their index file.
func resolve(fsys fs.FS, urlPath string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "."
	}

	if hidden(name) {
		return "", false
	}

	info, err := fs.Stat(fsys, name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		name = path.Join(name, indexFile)
		info, err = fs.Stat(fsys, name)
		if err != nil || info.IsDir() {
			return "", false
		}
	}

	return name, true
}

func hidden(name string) bool {
	if name == "." {
		return false
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
}
