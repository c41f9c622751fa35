package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"friendbook/database"
	"friendbook/media"
	"friendbook/middleware"
	"friendbook/models"
)

// GetMyProfile returns the caller's profile without the password.
func (h *Handler) GetMyProfile(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.FindByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "User not found")
		return
	}
	if err != nil {
		h.serverError(c, "GetMyProfile", err)
		return
	}

	c.JSON(http.StatusOK, user.WithDefaults())
}

func (h *Handler) GetUser(c *gin.Context) {
	userID, ok := paramID(c, "id", "User")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.FindByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		notFound(c, "User not found")
		return
	}
	if err != nil {
		h.serverError(c, "GetUser", err)
		return
	}

	c.JSON(http.StatusOK, user.WithDefaults())
}

// GetUserPosts lists one user's posts, newest first.
func (h *Handler) GetUserPosts(c *gin.Context) {
	userID, ok := paramID(c, "id", "User")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			notFound(c, "User not found")
			return
		}
		h.serverError(c, "GetUserPosts", err)
		return
	}

	posts, err := h.posts.ListByUser(ctx, userID)
	if err != nil {
		h.serverError(c, "GetUserPosts", err)
		return
	}
	views, err := h.views(ctx, posts...)
	if err != nil {
		h.serverError(c, "GetUserPosts", err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// UpdateProfileImages replaces the caller's profile picture and/or cover photo.
func (h *Handler) UpdateProfileImages(c *gin.Context) {
	if c.Param("id") != c.GetString(middleware.UserIDKey) {
		forbidden(c)
		return
	}
	userID, ok := callerID(c)
	if !ok {
		return
	}

	pictureFiles, err := formFiles(c, "profilePicture")
	if err != nil {
		badRequest(c, "Failed to parse form data")
		return
	}
	coverFiles, err := formFiles(c, "coverPhoto")
	if err != nil {
		badRequest(c, "Failed to parse form data")
		return
	}

	pictureUploads, err := h.media.Validate(pictureFiles, media.ProfilePolicy)
	if err != nil {
		h.mediaError(c, "UpdateProfileImages", err)
		return
	}
	coverUploads, err := h.media.Validate(coverFiles, media.ProfilePolicy)
	if err != nil {
		h.mediaError(c, "UpdateProfileImages", err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if len(pictureUploads) == 0 && len(coverUploads) == 0 {
		h.GetMyProfile(c)
		return
	}

	var images models.ProfileImages
	var stored []media.Stored

	pictures, err := h.media.Save(ctx, pictureUploads, media.ProfilePolicy)
	if err != nil {
		h.serverError(c, "UpdateProfileImages", err)
		return
	}
	stored = append(stored, pictures...)
	if len(pictures) > 0 {
		images.ProfilePicture = pictures[0].Path
	}

	covers, err := h.media.Save(ctx, coverUploads, media.ProfilePolicy)
	if err != nil {
		h.media.RemoveAll(ctx, media.Paths(stored))
		h.serverError(c, "UpdateProfileImages", err)
		return
	}
	stored = append(stored, covers...)
	if len(covers) > 0 {
		images.CoverPhoto = covers[0].Path
	}

	user, err := h.users.UpdateImages(ctx, userID, images)
	if err != nil {
		h.media.RemoveAll(ctx, media.Paths(stored))
		if errors.Is(err, database.ErrNotFound) {
			notFound(c, "User not found")
			return
		}
		h.serverError(c, "UpdateProfileImages", err)
		return
	}

	c.JSON(http.StatusOK, user.WithDefaults())
}
