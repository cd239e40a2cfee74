package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // SQL database interactions
	"errors"
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/config"     // app configuration
	"github.com/iliyamo/aura/internal/metrics"    // counters for email and verification outcomes
	"github.com/iliyamo/aura/internal/middleware" // validation messages and identity accessors
	"github.com/iliyamo/aura/internal/model"
	q "github.com/iliyamo/aura/internal/queue"
	"github.com/iliyamo/aura/internal/repository" // DB repositories
	publisher "github.com/iliyamo/aura/internal/service"
	"github.com/iliyamo/aura/internal/utils" // helper functions (hashing, token issuing)
	"github.com/iliyamo/aura/internal/verification"
)

const dbTimeout = 5 * time.Second

// Messages for the verification outcomes.
const (
	msgNoCode   = "No verification code found. Please request a new one."
	msgExpired  = "Verification code has expired. Please request a new one."
	msgMismatch = "Invalid verification code."

	msgAlreadyVerified = "Account already verified. No verification code found: the code has already been used."
	msgInactive = "Account is not verified. Check your email for the verification code."
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg          config.Config
	DB           *sql.DB
	Users        *repository.UserRepo
	Tokens       *repository.TokenRepo
	Profiles     *repository.ProfileRepo
	Verification *verification.Service
	Events       publisher.Publisher
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// ----- DTOs -----

type registerReq struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}
type verifyReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,otp"`
}
type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}
type loginReq struct {
	Login    string `json:"login" validate:"required"` // username or email
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u *model.User) userPart {
	return userPart{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsActive:  u.IsActive,
	}
}

// bindValid binds and validates a request body, writing the 400 itself.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": middleware.ValidationMessage(err)})
	}
	return true, nil
}

// Register creates an inactive account, its profile and its first
// verification code in one transaction, then emails the code.  A failed
// delivery does not fail the registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}
	u := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        repository.NormalizeEmail(req.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         model.RoleUser,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	code, err := h.createAccount(ctx, u)
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case err != nil:
		h.Logger.Error("register failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	res := h.Verification.Deliver(c.Request().Context(), u, code)
	h.Metrics.EmailResult(res.Sent)
	resp := echo.Map{
		"user":       toUserPart(u),
		"email_sent": res.Sent,
		"message":    "Account created. Enter the code we emailed you to activate it.",
	}
	if !res.Sent {
		resp["message"] = "Account created, but the verification email could not be sent. Request a new code."
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) createAccount(ctx context.Context, u *model.User) (string, error) {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if u.ID, err = h.Users.CreateTx(ctx, tx, u); err != nil {
		return "", err
	}
	if err := h.Profiles.CreateTx(ctx, tx, u.ID); err != nil {
		return "", err
	}
	code, err := h.Verification.IssueTx(ctx, tx, u.ID)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return code, nil
}

// Verify activates the account owning email when code matches its live
// verification code, and signs the user in.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	code := strings.TrimSpace(req.Code)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": msgAlreadyVerified})
	}
	err = h.Verification.Verify(ctx, u.ID, code)
	switch {
	case errors.Is(err, verification.ErrNoCodeFound):
		h.Metrics.Verification("no_code")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgNoCode})
	case errors.Is(err, verification.ErrExpired):
		h.Metrics.Verification("expired")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgExpired})
	case errors.Is(err, verification.ErrMismatch):
		h.Metrics.Verification("mismatch")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgMismatch})
	case err != nil:
		h.Logger.Error("verify failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	h.Metrics.Verification("ok")
	u.IsActive = true

	if h.Events != nil {
		_ = h.Events.PublishAccountActivated(ctx, q.AccountActivatedEvent{
			UserID:      u.ID,
			Username:    u.Username,
			ActivatedAt: q.Timestamp(time.Now()),
		})
	}
	return h.issue(ctx, c, u, http.StatusOK)
}

// Resend supersedes any outstanding code with a fresh one.
func (h *AuthHandler) Resend(c echo.Context) error {
	var req emailReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "account already verified"})
	}

	res, err := h.Verification.Resend(ctx, u)
	if err != nil {
		h.Logger.Error("resend code failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
	}
	h.Metrics.EmailResult(res.Sent)
	return c.JSON(http.StatusOK, echo.Map{"email_sent": res.Sent})
}

// Login accepts a username or an email and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	return h.login(c, false)
}

// SupervisorLogin is Login restricted to supervisor accounts.
func (h *AuthHandler) SupervisorLogin(c echo.Context) error {
	return h.login(c, true)
}

func (h *AuthHandler) login(c echo.Context, supervisorOnly bool) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, req.Login)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": msgInactive})
	}
	if supervisorOnly && !u.IsSupervisor() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "supervisor access required"})
	}
	if utils.NeedsRehash(u.PasswordHash, h.Cfg.BcryptCost) {
		if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
			if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
				h.Logger.Warn("rehash password failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			}
		}
	}
	return h.issue(ctx, c, u, http.StatusOK)
}

// issue signs an access token, stores a refresh token and writes both.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, u *model.User, status int) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// is returned.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	userID, err := h.Tokens.Rotate(ctx, oldHash, utils.HashRefreshRaw(newRef.Raw), newRef.Exp)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate refresh failed"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no refresh token is sent.  The route runs behind
// OptionalJWT.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	if uid, err := getUserID(c); err == nil {
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}
