package server

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/shared/server/respond"
	"cvbot-backend/internal/shared/storage/object"
	"cvbot-backend/internal/shared/util"
)

// registerFileRoutes publishes objects of the local store so chat users can
// open report and document links.
func registerFileRoutes(r gin.IRoutes, store object.ObjectStore) {
	r.GET("/files/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if key == "" {
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		rc, err := store.Open(c.Request.Context(), key)
		if err != nil {
			switch {
			case errors.Is(err, object.ErrInvalidKey):
				respond.Error(c, http.StatusBadRequest, "invalid_key", "invalid file key", nil)
			case errors.Is(err, fs.ErrNotExist):
				respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			default:
				respond.Error(c, http.StatusInternalServerError, "storage_error", "could not open file", nil)
			}
			return
		}
		defer rc.Close()

		head := make([]byte, 512)
		n, _ := io.ReadFull(rc, head)
		head = head[:n]
		c.Header("Content-Type", util.DetectMime(path.Base(key), head))
		c.Header("Cache-Control", "private, max-age=300")
		c.Status(http.StatusOK)
		if _, err := c.Writer.Write(head); err != nil {
			return
		}
		_, _ = io.Copy(c.Writer, rc)
	})
}
