package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"friendbook/mailer"
	"friendbook/media"
	"friendbook/middleware"
	"friendbook/models"
)

const requestTimeout = 10 * time.Second

// UserStore is the identity store.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	VerifyByToken(ctx context.Context, token string) (*models.User, error)
	UpdateImages(ctx context.Context, id primitive.ObjectID, images models.ProfileImages) (*models.User, error)
	FindDisplays(ctx context.Context, ids []primitive.ObjectID) (models.Displays, error)
}

// PendingStore holds registrations awaiting OTP confirmation.
type PendingStore interface {
	Upsert(ctx context.Context, p *models.PendingRegistration) error
	FindByEmail(ctx context.Context, email string) (*models.PendingRegistration, error)
	Delete(ctx context.Context, email string) error
}

// PostStore is the content store.
type PostStore interface {
	Create(ctx context.Context, p *models.Post) error
	List(ctx context.Context) ([]models.Post, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error)
	AddComment(ctx context.Context, id primitive.ObjectID, c models.Comment) (*models.Post, error)
	Update(ctx context.Context, id primitive.ObjectID, changes models.PostChanges) (*models.Post, error)
	RemoveMedia(ctx context.Context, id primitive.ObjectID, url string) (*models.Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Deps struct {
	Users   UserStore
	Pending PendingStore
	Posts   PostStore
	Media   *media.Service
	Mailer  mailer.Sender
	// OTPLimiter bounds verification attempts per email. Nil disables it.
	OTPLimiter middleware.Limiter
	Logger     *zap.Logger

	JWTSecret            string
	TokenTTL             time.Duration
	LoginRequireVerified bool

	Now func() time.Time
}

type Handler struct {
	users      UserStore
	pending    PendingStore
	posts      PostStore
	media      *media.Service
	mail       mailer.Sender
	otpLimiter middleware.Limiter
	logger     *zap.Logger

	jwtSecret            string
	tokenTTL             time.Duration
	loginRequireVerified bool

	now func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		users:                d.Users,
		pending:              d.Pending,
		posts:                d.Posts,
		media:                d.Media,
		mail:                 d.Mailer,
		otpLimiter:           d.OTPLimiter,
		logger:               d.Logger,
		jwtSecret:            d.JWTSecret,
		tokenTTL:             d.TokenTTL,
		loginRequireVerified: d.LoginRequireVerified,
		now:                  d.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", msg)
}

func notFound(c *gin.Context, msg string) {
	respondError(c, http.StatusNotFound, "NOT_FOUND", msg)
}

func forbidden(c *gin.Context) {
	respondError(c, http.StatusForbidden, "FORBIDDEN", "Unauthorized")
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "SERVER_ERROR", "Server error")
}

// mediaError reports a policy rejection as a client error, anything else as
// a server error.
func (h *Handler) mediaError(c *gin.Context, op string, err error) {
	var reject *media.RejectError
	if errors.As(err, &reject) {
		badRequest(c, reject.Reason)
		return
	}
	h.serverError(c, op, err)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// callerID returns the authenticated user. It writes a 401 when the gate
// stored something that is not an ObjectID.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid user ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// paramID parses an ObjectID path parameter. Malformed ids cannot match any
// document, so they are reported as not found.
func paramID(c *gin.Context, name, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		notFound(c, what+" not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// formFiles returns the files of a multipart field. Non-multipart requests
// simply carry no files.
func formFiles(c *gin.Context, field string) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	return form.File[field], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// views resolves owners and commenters with one batched user lookup.
func (h *Handler) views(ctx context.Context, posts ...models.Post) ([]models.PostView, error) {
	displays, err := h.users.FindDisplays(ctx, models.UserIDs(posts...))
	if err != nil {
		return nil, err
	}
	out := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.View(displays))
	}
	return out, nil
}

func (h *Handler) view(ctx context.Context, p *models.Post) (models.PostView, error) {
	v, err := h.views(ctx, *p)
	if err != nil {
		return models.PostView{}, err
	}
	return v[0], nil
}
