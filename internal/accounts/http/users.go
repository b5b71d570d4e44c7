package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pixelgrove/pixelgrove/internal/accounts/service"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store"
	"github.com/pixelgrove/pixelgrove/pkg/httpx"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
	"github.com/pixelgrove/pixelgrove/pkg/slogx"
)

type UsersHandler struct {
	AuthService *service.AuthService
	Store       store.Store
	Validate    *validator.Validate
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// HandleMe godoc
//
//	@Summary		Current User Endpoint
//	@Description	Return the account behind the presented access token. The
//	@Description	snapshot may lag directory changes by up to the session
//	@Description	cache TTL.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	userResponse
//	@Failure		401	{object}	map[string]string
//	@Router			/api/users/me [get].
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Not authenticated")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleSetActive godoc
//
//	@Summary		Account Moderation Endpoint
//	@Description	Enable or disable an account. Restricted to admins and
//	@Description	moderators. Deactivation does not revoke access tokens
//	@Description	already issued; they run to their natural expiry.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"account id"
//	@Param			body	body		setActiveRequest	true	"is_active"
//	@Success		200		{object}	userResponse
//	@Failure		401		{object}	map[string]string
//	@Failure		403		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/api/users/{id}/active [patch].
func (h *UsersHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "No such account")
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.Validate.Struct(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "Validation failed: "+err.Error())
		return
	}

	if err := h.Store.Users().SetActive(ctx, id, *req.IsActive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "No such account")
			return
		}
		log.Error("failed to update account status", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}

	u, err := h.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		log.Error("failed to reload account", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}
