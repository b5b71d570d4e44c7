package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/internal/accounts/service"
	"github.com/pixelgrove/pixelgrove/pkg/httpx"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
	"github.com/pixelgrove/pixelgrove/pkg/slogx"
)

type AuthHandler struct {
	AuthService *service.AuthService
	EmailSender service.EmailSender
	BaseURL     string
	Validate    *validator.Validate
}

type signupRequest struct {
	Nickname string `json:"nickname" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type requestEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type userResponse struct {
	ID        idx.ID    `json:"id"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Nickname:  u.Nickname,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		Confirmed: u.Confirmed,
		CreatedAt: u.CreatedAt,
	}
}

// decodeJSON parses and validates a JSON request body.
func (h *AuthHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := h.Validate.Struct(dst); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// sendConfirmation mints a confirmation token and hands it to the mail
// sender off the request path. Failures are logged, never surfaced to the
// client.
func (h *AuthHandler) sendConfirmation(r *http.Request, u domain.User) {
	log := slogx.FromContext(r.Context())

	token, err := h.AuthService.CreateEmailToken(u.Email)
	if err != nil {
		log.Error("failed to mint confirmation token", "err", err)
		return
	}

	// Detached from the request context so the send outlives the response.
	ctx := slogx.WithContext(context.Background(), log)
	go func() {
		if err := h.EmailSender.SendConfirmation(ctx, u.Email, u.Nickname, service.ConfirmURL(h.BaseURL, token)); err != nil {
			log.Error("failed to send confirmation email", "err", err)
		}
	}()
}

// HandleSignup godoc
//
//	@Summary		Register Account Endpoint
//	@Description	Create a new account and send a confirmation email. The account
//	@Description	cannot log in until the email address is confirmed.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		signupRequest	true	"nickname, email, password"
//	@Success		201		{object}	userResponse	"the created account"
//	@Failure		400		{object}	map[string]string
//	@Failure		409		{object}	map[string]string	"email already registered"
//	@Failure		422		{object}	map[string]string
//	@Router			/api/auth/signup [post].
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req signupRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	u, err := h.AuthService.Register(ctx, req.Nickname, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, "Email already registered")
			return
		}
		log.Error("failed to register account", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to register account")
		return
	}

	h.sendConfirmation(r, u)

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// HandleLogin godoc
//
//	@Summary		Login Endpoint
//	@Description	Exchange email and password for an access/refresh token pair.
//	@Description	Logging in displaces any previously issued refresh token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		loginRequest	true	"email, password"
//	@Success		200		{object}	domain.TokenPair
//	@Failure		401		{object}	map[string]string
//	@Failure		422		{object}	map[string]string
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSuchUser):
			httpx.WriteError(w, http.StatusUnauthorized, "No account with this email")
		case errors.Is(err, service.ErrEmailNotConfirmed):
			httpx.WriteError(w, http.StatusUnauthorized, "Email address not confirmed")
		case errors.Is(err, service.ErrUserInactive):
			httpx.WriteError(w, http.StatusUnauthorized, "Account is deactivated")
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "Incorrect email or password")
		default:
			log.Error("failed to log in", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Failed to log in")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleRefresh godoc
//
//	@Summary		Refresh Token Endpoint
//	@Description	Exchange a refresh token for a new access/refresh pair. The
//	@Description	presented token is rotated out; presenting it again revokes
//	@Description	the session entirely.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		refreshRequest	true	"refresh_token"
//	@Success		200		{object}	domain.TokenPair
//	@Failure		401		{object}	map[string]string
//	@Failure		422		{object}	map[string]string
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.AuthService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthenticated):
			writeUnauthorized(w, "Could not validate refresh token")
		case errors.Is(err, service.ErrInvalidScope):
			writeUnauthorized(w, "Token is not a refresh token")
		case errors.Is(err, service.ErrStaleRefresh):
			writeUnauthorized(w, "Refresh token has been superseded")
		default:
			log.Error("failed to refresh tokens", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Failed to refresh tokens")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleConfirmEmail godoc
//
//	@Summary		Confirm Email Endpoint
//	@Description	Confirm an account's email address using the token from the
//	@Description	confirmation email. Confirming twice is harmless.
//	@Tags			Auth
//	@Produce		json
//	@Param			token	path		string	true	"confirmation token"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	map[string]string	"invalid or expired token"
//	@Router			/api/auth/confirmed_email/{token} [get].
func (h *AuthHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.AuthService.ConfirmEmail(ctx, r.PathValue("token"))
	if err != nil {
		if errors.Is(err, service.ErrVerification) {
			httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired confirmation token")
			return
		}
		log.Error("failed to confirm email", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to confirm email")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"detail": "Email confirmed"})
}

// HandleRequestEmail godoc
//
//	@Summary		Resend Confirmation Email Endpoint
//	@Description	Request a fresh confirmation email. The response is identical
//	@Description	whether or not the address belongs to an account, so it cannot
//	@Description	be used to probe for registered emails.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		requestEmailRequest	true	"email"
//	@Success		202		{object}	map[string]string
//	@Failure		422		{object}	map[string]string
//	@Router			/api/auth/request_email [post].
func (h *AuthHandler) HandleRequestEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestEmailRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if u, err := h.AuthService.Store.Users().GetUserByEmail(ctx, req.Email); err == nil && !u.Confirmed {
		h.sendConfirmation(r, u)
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"detail": "If the address is registered, a confirmation email is on its way",
	})
}

// HandleLogout godoc
//
//	@Summary		Logout Endpoint
//	@Description	Clear the account's refresh token. Access tokens already in
//	@Description	the wild remain valid until they expire. Idempotent.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	map[string]string
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	u, ok := UserFromContext(ctx)
	if !ok {
		writeUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.AuthService.Logout(ctx, u.ID); err != nil {
		log.Error("failed to log out", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
