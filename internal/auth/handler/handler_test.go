package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"talentgate/internal/auth/authenticator"
	"talentgate/internal/auth/handler/mocks"
	"talentgate/internal/auth/models"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

type AuthHandlerSuite struct {
	suite.Suite
	principal *models.Principal
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	s.principal = &models.Principal{
		UserID:    id.NewUserID(),
		Email:     "jane@example.com",
		UserType:  models.UserTypeRecruiter,
		SessionID: id.NewSessionID(),
	}
}

func (s *AuthHandlerSuite) newHandler(t *testing.T) (*mocks.MockService, *chi.Mux) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	router := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router)
	return svc, router
}

func tokenResult() *models.TokenResult {
	return &models.TokenResult{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresIn:    900,
		User:         models.UserInfoResult{ID: "u1", Email: "jane@example.com"},
	}
}

func (s *AuthHandlerSuite) TestHandler_Signup() {
	body := `{"email":" Jane@Example.com ","username":"jane","password":"Secur3Pass!","first_name":"Jane","last_name":"Doe"}`

	s.T().Run("201 - normalized request reaches the service", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Signup(gomock.Any(), &models.SignupRequest{
			Email:     "jane@example.com",
			Username:  "jane",
			Password:  "Secur3Pass!",
			FirstName: "Jane",
			LastName:  "Doe",
		}).Return(tokenResult(), nil)

		rr := s.do(router, http.MethodPost, "/auth/signup", body, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var got models.TokenResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "access", got.AccessToken)
		assert.Equal(t, "refresh", got.RefreshToken)
		assert.Equal(t, 900, got.ExpiresIn)
	})

	s.T().Run("400 - validation failure never reaches the service", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Signup(gomock.Any(), gomock.Any()).Times(0)

		rr := s.do(router, http.MethodPost, "/auth/signup", `{"email":"not-an-email","username":"jane","password":"short"}`, nil)

		s.assertError(t, rr, http.StatusBadRequest, "validation_error")
	})

	s.T().Run("400 - malformed json", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Signup(gomock.Any(), gomock.Any()).Times(0)

		rr := s.do(router, http.MethodPost, "/auth/signup", `{"email": "`, nil)

		s.assertError(t, rr, http.StatusBadRequest, "bad_request")
	})

	s.T().Run("409 - email taken", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Signup(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeConflict, "email already registered"))

		rr := s.do(router, http.MethodPost, "/auth/signup", body, nil)

		s.assertError(t, rr, http.StatusConflict, "conflict")
	})
}

func (s *AuthHandlerSuite) TestHandler_Login() {
	s.T().Run("200 - remember me is forwarded", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), &models.LoginRequest{
			Email:      "jane@example.com",
			Password:   "Secur3Pass!",
			RememberMe: true,
		}).Return(tokenResult(), nil)

		rr := s.do(router, http.MethodPost, "/auth/login", `{"email":"JANE@example.com","password":"Secur3Pass!","remember_me":true}`, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("401 - invalid credentials carry a bearer challenge", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"))

		rr := s.do(router, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"nope"}`, nil)

		errBody := s.assertError(t, rr, http.StatusUnauthorized, "unauthorized")
		assert.Equal(t, "invalid email or password", errBody["error_description"])
		assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
	})

	s.T().Run("401 - inactive user is not revealed", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeUserInactive, "account is inactive"))

		rr := s.do(router, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"Secur3Pass!"}`, nil)

		s.assertError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	s.T().Run("503 - store outage", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeAuthInfrastructure, "user lookup failed"))

		rr := s.do(router, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"Secur3Pass!"}`, nil)

		s.assertError(t, rr, http.StatusServiceUnavailable, string(dErrors.CodeAuthInfrastructure))
		assert.Equal(t, "5", rr.Header().Get("Retry-After"))
	})

	s.T().Run("500 - unexpected error", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

		rr := s.do(router, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"Secur3Pass!"}`, nil)

		s.assertError(t, rr, http.StatusInternalServerError, "internal_error")
	})
}

func (s *AuthHandlerSuite) TestHandler_Refresh() {
	s.T().Run("200 - returns the rotated pair", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Refresh(gomock.Any(), "refresh-token").Return(tokenResult(), nil)

		rr := s.do(router, http.MethodPost, "/auth/refresh", `{"refresh_token":" refresh-token "}`, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("401 - revoked session is reported as session_invalid", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Refresh(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeSessionRevoked, "session has been revoked"))

		rr := s.do(router, http.MethodPost, "/auth/refresh", `{"refresh_token":"refresh-token"}`, nil)

		s.assertError(t, rr, http.StatusUnauthorized, "session_invalid")
	})

	s.T().Run("400 - missing token", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Refresh(gomock.Any(), gomock.Any()).Times(0)

		rr := s.do(router, http.MethodPost, "/auth/refresh", `{}`, nil)

		s.assertError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *AuthHandlerSuite) TestHandler_SSOCallback() {
	s.T().Run("200 - profile is normalized and forwarded", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().SSOLogin(gomock.Any(), models.IdentityProviderProfile{
			ExternalID:             "user_01",
			Email:                  "jane@example.com",
			FirstName:              "Jane",
			OrganizationExternalID: "org_01",
		}).Return(tokenResult(), nil)

		rr := s.do(router, http.MethodPost, "/auth/sso/callback",
			`{"external_id":"user_01","email":"Jane@Example.com","first_name":" Jane ","organization_external_id":"org_01"}`, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("400 - external id is required", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().SSOLogin(gomock.Any(), gomock.Any()).Times(0)

		rr := s.do(router, http.MethodPost, "/auth/sso/callback", `{"email":"jane@example.com"}`, nil)

		s.assertError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *AuthHandlerSuite) TestHandler_AuthenticatedRoutes() {
	s.T().Run("401 - every authenticated route requires a principal", func(t *testing.T) {
		_, router := s.newHandler(t)
		routes := []struct{ method, path string }{
			{http.MethodPost, "/auth/logout"},
			{http.MethodPost, "/auth/logout-all"},
			{http.MethodGet, "/auth/me"},
			{http.MethodGet, "/auth/sessions"},
			{http.MethodDelete, "/auth/sessions/" + id.NewSessionID().String()},
		}
		for _, route := range routes {
			rr := s.do(router, route.method, route.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
		}
	})

	s.T().Run("204 - logout", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Logout(gomock.Any(), s.principal).Return(nil)

		rr := s.do(router, http.MethodPost, "/auth/logout", "", s.principal)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	s.T().Run("200 - logout-all revokes everything by default", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().LogoutAll(gomock.Any(), s.principal.UserID, (*id.SessionID)(nil)).
			Return(&models.LogoutAllResult{RevokedCount: 3}, nil)

		rr := s.do(router, http.MethodPost, "/auth/logout-all", "", s.principal)

		require.Equal(t, http.StatusOK, rr.Code)
		var got models.LogoutAllResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 3, got.RevokedCount)
	})

	s.T().Run("200 - logout-all can keep the current session", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().LogoutAll(gomock.Any(), s.principal.UserID, &s.principal.SessionID).
			Return(&models.LogoutAllResult{RevokedCount: 2}, nil)

		rr := s.do(router, http.MethodPost, "/auth/logout-all?keep_current=true", "", s.principal)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("400 - logout-all with a malformed flag", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().LogoutAll(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := s.do(router, http.MethodPost, "/auth/logout-all?keep_current=maybe", "", s.principal)

		s.assertError(t, rr, http.StatusBadRequest, "bad_request")
	})

	s.T().Run("200 - me", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Me(gomock.Any(), s.principal.UserID).
			Return(&models.UserInfoResult{ID: s.principal.UserID.String(), Email: "jane@example.com"}, nil)

		rr := s.do(router, http.MethodGet, "/auth/me", "", s.principal)

		require.Equal(t, http.StatusOK, rr.Code)
		var got models.UserInfoResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "jane@example.com", got.Email)
	})

	s.T().Run("200 - sessions are listed with the current one marked", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().ListSessions(gomock.Any(), s.principal.UserID, s.principal.SessionID).
			Return(&models.SessionsResult{Sessions: []models.SessionSummary{
				{SessionID: s.principal.SessionID.String(), Device: "Safari on macOS", IsCurrent: true},
			}}, nil)

		rr := s.do(router, http.MethodGet, "/auth/sessions", "", s.principal)

		require.Equal(t, http.StatusOK, rr.Code)
		var got models.SessionsResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.Sessions, 1)
		assert.True(t, got.Sessions[0].IsCurrent)
	})
}

func (s *AuthHandlerSuite) TestHandler_RevokeSession() {
	target := id.NewSessionID()

	s.T().Run("204 - own session", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().RevokeOwnSession(gomock.Any(), s.principal.UserID, target).Return(nil)

		rr := s.do(router, http.MethodDelete, "/auth/sessions/"+target.String(), "", s.principal)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	s.T().Run("404 - foreign or unknown session", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().RevokeOwnSession(gomock.Any(), s.principal.UserID, target).
			Return(dErrors.New(dErrors.CodeSessionNotFound, "session not found"))

		rr := s.do(router, http.MethodDelete, "/auth/sessions/"+target.String(), "", s.principal)

		s.assertError(t, rr, http.StatusNotFound, "not_found")
	})

	s.T().Run("400 - malformed id", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().RevokeOwnSession(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := s.do(router, http.MethodDelete, "/auth/sessions/not-a-uuid", "", s.principal)

		s.assertError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *AuthHandlerSuite) do(router http.Handler, method, path, body string, principal *models.Principal) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(authenticator.WithPrincipal(req.Context(), principal))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func (s *AuthHandlerSuite) assertError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) map[string]string {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	assert.Equal(t, expectedCode, errBody["error"])
	return errBody
}
