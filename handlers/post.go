package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"friendbook/database"
	"friendbook/media"
	"friendbook/models"
)

type PostContentRequest struct {
	Content string `form:"content" json:"content"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

type DeleteMediaRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (h *Handler) ListPosts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.posts.List(ctx)
	if err != nil {
		h.serverError(c, "ListPosts", err)
		return
	}
	views, err := h.views(ctx, posts...)
	if err != nil {
		h.serverError(c, "ListPosts", err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// CreatePost publishes a post with text, media or both.
func (h *Handler) CreatePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req PostContentRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)

	files, err := formFiles(c, "media")
	if err != nil {
		badRequest(c, "Failed to parse form data")
		return
	}
	if content == "" && len(files) == 0 {
		badRequest(c, "Post content or media is required")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stored, err := h.media.Ingest(ctx, files, media.PostPolicy)
	if err != nil {
		h.mediaError(c, "CreatePost", err)
		return
	}

	post := &models.Post{
		User:      userID,
		Content:   content,
		Media:     media.Paths(stored),
		MediaType: media.KindOfSet(stored),
	}
	if err := h.posts.Create(ctx, post); err != nil {
		h.media.RemoveAll(ctx, post.Media)
		h.serverError(c, "CreatePost", err)
		return
	}

	view, err := h.view(ctx, post)
	if err != nil {
		h.serverError(c, "CreatePost", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetPost(c *gin.Context) {
	post, ok := h.loadPost(c, "GetPost")
	if !ok {
		return
	}
	h.respondPost(c, "GetPost", post)
}

// ListLikers returns the users who liked a post, in like order. Likes from
// users that no longer exist are skipped.
func (h *Handler) ListLikers(c *gin.Context) {
	post, ok := h.loadPost(c, "ListLikers")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	displays, err := h.users.FindDisplays(ctx, post.Likes)
	if err != nil {
		h.serverError(c, "ListLikers", err)
		return
	}

	likers := make([]models.UserDisplay, 0, len(post.Likes))
	for _, id := range post.Likes {
		if d, ok := displays[id]; ok {
			likers = append(likers, d)
		}
	}
	c.JSON(http.StatusOK, likers)
}

func (h *Handler) ToggleLike(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id", "Post")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.ToggleLike(ctx, postID, userID)
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "Post not found")
		return
	}
	if err != nil {
		h.serverError(c, "ToggleLike", err)
		return
	}
	h.respondPost(c, "ToggleLike", post)
}

func (h *Handler) AddComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req CommentRequest
	err := c.ShouldBindJSON(&req)
	content := strings.TrimSpace(req.Content)
	if err != nil || content == "" {
		badRequest(c, "Content is required")
		return
	}

	postID, ok := paramID(c, "id", "Post")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.AddComment(ctx, postID, models.Comment{User: userID, Content: content})
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "Post not found")
		return
	}
	if err != nil {
		h.serverError(c, "AddComment", err)
		return
	}
	h.respondPost(c, "AddComment", post)
}

// UpdatePost lets the owner replace the content and/or the media set. New
// media replaces the old set wholesale and the old files are removed after
// the document is updated.
func (h *Handler) UpdatePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	post, ok := h.loadPost(c, "UpdatePost")
	if !ok {
		return
	}
	if !post.IsOwnedBy(userID) {
		forbidden(c)
		return
	}

	var req PostContentRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	files, err := formFiles(c, "media")
	if err != nil {
		badRequest(c, "Failed to parse form data")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stored, err := h.media.Ingest(ctx, files, media.PostPolicy)
	if err != nil {
		h.mediaError(c, "UpdatePost", err)
		return
	}

	changes := models.PostChanges{
		Content:   strings.TrimSpace(req.Content),
		Media:     media.Paths(stored),
		MediaType: media.KindOfSet(stored),
	}
	if changes.Empty() {
		h.respondPost(c, "UpdatePost", post)
		return
	}

	updated, err := h.posts.Update(ctx, post.ID, changes)
	if err != nil {
		h.media.RemoveAll(ctx, changes.Media)
		if errors.Is(err, database.ErrNotFound) {
			notFound(c, "Post not found")
			return
		}
		h.serverError(c, "UpdatePost", err)
		return
	}

	if len(changes.Media) > 0 {
		h.media.RemoveAll(ctx, post.Media)
	}
	h.respondPost(c, "UpdatePost", updated)
}

// DeleteMedia removes one media item from a post. The file itself is only
// touched when the url really belonged to the post.
func (h *Handler) DeleteMedia(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req DeleteMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageURL == "" {
		badRequest(c, "Image URL is required")
		return
	}

	post, ok := h.loadPost(c, "DeleteMedia")
	if !ok {
		return
	}
	if !post.IsOwnedBy(userID) {
		forbidden(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	updated, err := h.posts.RemoveMedia(ctx, post.ID, req.ImageURL)
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "Post not found")
		return
	}
	if err != nil {
		h.serverError(c, "DeleteMedia", err)
		return
	}

	if post.HasMedia(req.ImageURL) {
		if err := h.media.Remove(ctx, req.ImageURL); err != nil && !errors.Is(err, media.ErrNotExist) {
			h.logger.Warn("DeleteMedia: file removal failed", zap.String("path", req.ImageURL), zap.Error(err))
		}
	}

	remaining := updated.Media
	if remaining == nil {
		remaining = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image removed", "updatedMedia": remaining})
}

func (h *Handler) DeletePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	post, ok := h.loadPost(c, "DeletePost")
	if !ok {
		return
	}
	if !post.IsOwnedBy(userID) {
		forbidden(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.posts.Delete(ctx, post.ID)
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "Post not found")
		return
	}
	if err != nil {
		h.serverError(c, "DeletePost", err)
		return
	}

	h.media.RemoveAll(ctx, post.Media)
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// loadPost fetches the post named by the :id parameter, writing a 404 when it
// does not exist.
func (h *Handler) loadPost(c *gin.Context, op string) (*models.Post, bool) {
	postID, ok := paramID(c, "id", "Post")
	if !ok {
		return nil, false
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.FindByID(ctx, postID)
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "Post not found")
		return nil, false
	}
	if err != nil {
		h.serverError(c, op, err)
		return nil, false
	}
	return post, true
}

func (h *Handler) respondPost(c *gin.Context, op string, post *models.Post) {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.view(ctx, post)
	if err != nil {
		h.serverError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
