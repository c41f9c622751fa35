package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"friendbook/database"
	"friendbook/mailer"
	"friendbook/media"
	"friendbook/middleware"
	"friendbook/models"
)

type RegisterRequest struct {
	FirstName string `form:"firstName" json:"firstName" binding:"required"`
	LastName  string `form:"lastName" json:"lastName" binding:"required"`
	Email     string `form:"email" json:"email" binding:"required,email"`
	Password  string `form:"password" json:"password" binding:"required,min=6"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// generateOTP returns a 6 digit code without a leading zero.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// Register stores a pending registration and emails its one-time code.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	email := normalizeEmail(req.Email)

	files, err := formFiles(c, "profilePicture")
	if err != nil {
		badRequest(c, "Failed to parse form data")
		return
	}
	uploads, err := h.media.Validate(files, media.ProfilePolicy)
	if err != nil {
		h.mediaError(c, "Register", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	_, err = h.users.FindByEmail(ctx, email)
	if err == nil {
		respondError(c, http.StatusBadRequest, "CONFLICT", "User already exists")
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		h.serverError(c, "Register", err)
		return
	}

	code, err := generateOTP()
	if err != nil {
		h.serverError(c, "Register", err)
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(c, "Register", err)
		return
	}

	stored, err := h.media.Save(ctx, uploads, media.ProfilePolicy)
	if err != nil {
		h.serverError(c, "Register", err)
		return
	}
	picture := models.DefaultProfilePicture
	if len(stored) > 0 {
		picture = stored[0].Path
	}

	pending := &models.PendingRegistration{
		Email:          email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Password:       string(hashed),
		OTP:            code,
		ProfilePicture: picture,
	}
	if err := h.pending.Upsert(ctx, pending); err != nil {
		h.media.RemoveAll(ctx, media.Paths(stored))
		h.serverError(c, "Register", err)
		return
	}

	subject, body := mailer.OTPMessage(code)
	if err := h.mail.Send(ctx, email, subject, body); err != nil {
		if derr := h.pending.Delete(ctx, email); derr != nil {
			h.logger.Warn("Register: pending cleanup failed", zap.String("email", email), zap.Error(derr))
		}
		h.media.RemoveAll(ctx, media.Paths(stored))
		h.serverError(c, "Register: send OTP", err)
		return
	}

	// A fresh code gets a fresh attempt budget.
	if h.otpLimiter != nil {
		if err := h.otpLimiter.Reset(ctx, email); err != nil {
			h.logger.Warn("Register: attempt limiter reset failed", zap.String("email", email), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": "OTP sent"})
}

// VerifyOTP turns a pending registration into a verified user.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	email := normalizeEmail(req.Email)

	ctx, cancel := requestContext(c)
	defer cancel()

	if h.otpLimiter != nil {
		ok, err := h.otpLimiter.Allow(ctx, email)
		if err != nil {
			h.logger.Warn("VerifyOTP: attempt limiter unavailable", zap.Error(err))
		} else if !ok {
			respondError(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many attempts, register again later")
			return
		}
	}

	pending, err := h.pending.FindByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid OTP")
		return
	}
	if err != nil {
		h.serverError(c, "VerifyOTP", err)
		return
	}

	expired := h.now().Sub(pending.CreatedAt) > database.PendingTTL
	if expired || subtle.ConstantTimeCompare([]byte(pending.OTP), []byte(req.OTP)) != 1 {
		respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid OTP")
		return
	}

	user := &models.User{
		FirstName:      pending.FirstName,
		LastName:       pending.LastName,
		Email:          pending.Email,
		Password:       pending.Password,
		ProfilePicture: pending.ProfilePicture,
		IsVerified:     true,
	}
	err = h.users.Create(ctx, user)
	if errors.Is(err, database.ErrDuplicate) {
		respondError(c, http.StatusBadRequest, "CONFLICT", "User already exists")
		return
	}
	if err != nil {
		h.serverError(c, "VerifyOTP", err)
		return
	}

	if err := h.pending.Delete(ctx, email); err != nil {
		h.logger.Warn("VerifyOTP: pending cleanup failed", zap.String("email", email), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Registration successful"})
}

// VerifyEmail is the legacy token based verification path.
func (h *Handler) VerifyEmail(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	_, err := h.users.VerifyByToken(ctx, c.Param("token"))
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusBadRequest, "INVALID_TOKEN", "Invalid or expired verification token")
		return
	}
	if err != nil {
		h.serverError(c, "VerifyEmail", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully. You can now log in."})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	if err != nil {
		h.serverError(c, "Login", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	if h.loginRequireVerified && !user.IsVerified {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Email not verified")
		return
	}

	token, err := middleware.NewToken(h.jwtSecret, user.ID.Hex(), h.tokenTTL)
	if err != nil {
		h.serverError(c, "Login", err)
		return
	}

	u := user.WithDefaults()
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"_id":            u.ID.Hex(),
			"firstName":      u.FirstName,
			"lastName":       u.LastName,
			"email":          u.Email,
			"profilePicture": u.ProfilePicture,
		},
	})
}
