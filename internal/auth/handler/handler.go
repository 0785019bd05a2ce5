package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"talentgate/internal/auth/authenticator"
	"talentgate/internal/auth/models"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/platform/httputil"
	"talentgate/pkg/requestcontext"
)

// Service defines the account operations exposed over HTTP.
type Service interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.TokenResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error)
	SSOLogin(ctx context.Context, profile models.IdentityProviderProfile) (*models.TokenResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResult, error)
	Logout(ctx context.Context, principal *models.Principal) error
	LogoutAll(ctx context.Context, userID id.UserID, keep *id.SessionID) (*models.LogoutAllResult, error)
	ListSessions(ctx context.Context, userID id.UserID, current id.SessionID) (*models.SessionsResult, error)
	RevokeOwnSession(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
	Me(ctx context.Context, userID id.UserID) (*models.UserInfoResult, error)
}

// Handler serves the account lifecycle endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

// New creates a new auth Handler with the given service and logger.
func New(auth Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: auth, logger: logger}
}

// Register registers the auth routes with the chi router.
// The authenticated routes expect the parent router to run the auth middleware;
// without a principal in the context they answer 401.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/signup", h.HandleSignup)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/sso/callback", h.HandleSSOCallback)

	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/logout-all", h.HandleLogoutAll)
	r.Get("/auth/me", h.HandleMe)
	r.Get("/auth/sessions", h.HandleListSessions)
	r.Delete("/auth/sessions/{sessionID}", h.HandleRevokeSession)
}

// HandleSignup implements POST /auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[models.SignupRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, r, "signup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleLogin implements POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleRefresh implements POST /auth/refresh. The presented refresh token is
// single-use: the response carries its replacement.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[models.RefreshRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, "token refresh failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSSOCallback implements POST /auth/sso/callback. The body is a profile
// an upstream SSO exchange has already validated.
func (h *Handler) HandleSSOCallback(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[models.SSOCallbackRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.auth.SSOLogin(r.Context(), req.Profile())
	if err != nil {
		h.fail(w, r, "sso login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleLogout revokes the session behind the caller's access token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := h.auth.Logout(r.Context(), principal); err != nil {
		h.fail(w, r, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll revokes every session of the caller. With
// ?keep_current=true the calling session survives.
func (h *Handler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	var keep *id.SessionID
	if raw := r.URL.Query().Get("keep_current"); raw != "" {
		keepCurrent, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "keep_current must be a boolean"))
			return
		}
		if keepCurrent && principal.HasSession() {
			current := principal.SessionID
			keep = &current
		}
	}

	res, err := h.auth.LogoutAll(r.Context(), principal.UserID, keep)
	if err != nil {
		h.fail(w, r, "logout-all failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleMe returns the caller's profile.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	res, err := h.auth.Me(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, r, "failed to get user info", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleListSessions lists the caller's live sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	res, err := h.auth.ListSessions(r.Context(), principal.UserID, principal.SessionID)
	if err != nil {
		h.fail(w, r, "failed to list sessions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleRevokeSession revokes one of the caller's own sessions.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return
	}
	if err := h.auth.RevokeOwnSession(r.Context(), principal.UserID, sessionID); err != nil {
		// The caller is authenticated; an unknown or foreign session is a 404 here.
		if dErrors.HasCode(err, dErrors.CodeSessionNotFound) {
			err = &dErrors.Error{Code: dErrors.CodeNotFound, Message: "session not found", Err: err}
		}
		h.fail(w, r, "failed to revoke session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	principal, ok := authenticator.PrincipalFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return nil, false
	}
	return principal, true
}

// fail logs at WARN for caller mistakes and ERROR for everything else, then
// writes the mapped response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeAuthInfrastructure || code == "" {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
