package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/repository"
	"github.com/iliyamo/aura/internal/storage"
	"github.com/iliyamo/aura/internal/utils"
)

const recentRatings = 5

// ProfileHandler serves the account page: overview, edits, password and
// avatar.
type ProfileHandler struct {
	BcryptCost     int
	MaxAvatarBytes int64
	Users          *repository.UserRepo
	Profiles       *repository.ProfileRepo
	Watchlist      *repository.WatchlistRepo
	Ratings        *repository.RatingRepo
	Avatars        storage.AvatarStore
	Logger         *zap.Logger
}

type updateProfileReq struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// Get returns the account with its library counters, latest ratings and
// avatar URL.
func (h *ProfileHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	profile, err := h.Profiles.Get(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load profile failed"})
	}
	watchCount, err := h.Watchlist.CountByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count watchlist failed"})
	}
	ratingCount, err := h.Ratings.CountByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count ratings failed"})
	}
	recent, err := h.Ratings.ListByUser(ctx, uid, recentRatings, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list ratings failed"})
	}
	items := make([]ratingResp, 0, len(recent))
	for i := range recent {
		items = append(items, toRatingResp(&recent[i], true))
	}

	avatarURL, err := h.Avatars.URL(ctx, profile.AvatarKey)
	if err != nil {
		h.Logger.Warn("avatar url failed", zap.Uint64("user_id", uid), zap.Error(err))
		avatarURL = ""
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":            toUserPart(u),
		"avatar_url":      avatarURL,
		"watchlist_count": watchCount,
		"ratings_count":   ratingCount,
		"recent_ratings":  items,
	})
}

// Update edits username, email and names.
func (h *ProfileHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateProfileReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()

	err = h.Users.UpdateProfile(ctx, uid, req.Username, req.Email, req.FirstName, req.LastName)
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update profile failed"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// ChangePassword replaces the password after checking the current one.
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.OldPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	}
	hash, err := utils.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}
	if err := h.Users.UpdatePassword(ctx, uid, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update password failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadAvatar stores the multipart "avatar" image and replaces the
// previous one.
func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar file required"})
	}
	tooLarge := fmt.Sprintf("avatar must be at most %d bytes", h.MaxAvatarBytes)
	if h.MaxAvatarBytes > 0 && fh.Size > h.MaxAvatarBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": tooLarge})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read avatar failed"})
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.MaxAvatarBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read avatar failed"})
	}
	ctx := c.Request().Context()

	key, err := h.Avatars.Save(ctx, uid, data)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": tooLarge})
	case errors.Is(err, storage.ErrUnsupportedType):
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "avatar must be a JPEG, PNG, GIF or WebP image"})
	case errors.Is(err, storage.ErrDisabled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "avatar uploads are not available"})
	case err != nil:
		h.Logger.Error("avatar upload failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "avatar upload failed"})
	}

	old, err := h.Profiles.Get(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load profile failed"})
	}
	if err := h.Profiles.SetAvatar(ctx, uid, key); err != nil {
		_ = h.Avatars.Delete(ctx, key)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save avatar failed"})
	}
	if old.AvatarKey != "" {
		if err := h.Avatars.Delete(ctx, old.AvatarKey); err != nil {
			h.Logger.Warn("delete old avatar failed", zap.String("key", old.AvatarKey), zap.Error(err))
		}
	}

	url, err := h.Avatars.URL(ctx, key)
	if err != nil {
		url = ""
	}
	return c.JSON(http.StatusOK, echo.Map{"avatar_url": url})
}
