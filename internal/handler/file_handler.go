package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/ai"
	"github.com/xxxsen/bioweaver/internal/filestore"
)

// FileHandler serves stored artifacts under /static when no public base url
// fronts the stores.
type FileHandler struct {
	audio filestore.Store
	books filestore.Store
}

func NewFileHandler(audio, books filestore.Store) *FileHandler {
	return &FileHandler{audio: audio, books: books}
}

func (h *FileHandler) Audio(c *gin.Context) {
	h.serve(c, h.audio, ai.AudioContentType(c.Param("key")))
}

func (h *FileHandler) Book(c *gin.Context) {
	key := c.Param("key")
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.serve(c, h.books, contentType)
}

func (h *FileHandler) serve(c *gin.Context, store filestore.Store, contentType string) {
	key := c.Param("key")
	if !filestore.ValidKey(key) || key == ".healthcheck" {
		c.Status(http.StatusNotFound)
		return
	}
	file, err := store.Open(c.Request.Context(), key)
	if err != nil {
		if !errors.Is(err, filestore.ErrNotExist) {
			logutil.GetLogger(c.Request.Context()).Error("open stored file failed",
				zap.String("kind", store.Kind()), zap.String("key", key), zap.Error(err))
		}
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
