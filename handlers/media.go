package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"friendbook/media"
)

// ServeMedia streams a stored upload. Range requests are honoured so videos
// can seek.
func (h *Handler) ServeMedia(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	name := c.Param("name")
	obj, err := h.media.Open(ctx, name)
	if errors.Is(err, media.ErrNotExist) {
		notFound(c, "File not found")
		return
	}
	if err != nil {
		h.serverError(c, "ServeMedia", err)
		return
	}
	defer obj.Close()

	c.Header("Content-Type", media.ServeType(obj.ContentType))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'; sandbox")
	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, name, obj.ModTime, obj)
}
