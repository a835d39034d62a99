package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgapi/internal/auth"
	apperrors "orgapi/internal/errors"
	"orgapi/internal/handler"
	"orgapi/internal/metrics"
	"orgapi/internal/middleware"
	"orgapi/internal/repository/memory"
	"orgapi/internal/service"
)

const testSecret = "router-test-secret"

type revocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (r *revocationList) RevokeAccessToken(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = ttl
	return nil
}

func (r *revocationList) IsAccessTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}

type testServer struct {
	e   *echo.Echo
	jwt *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithTokens(t, &revocationList{revoked: make(map[string]time.Duration)})
}

func newTestServerWithTokens(t *testing.T, tokens auth.TokenStoreInterface) *testServer {
	t.Helper()

	store := memory.NewStore()
	jwtService := auth.NewJWTService(testSecret)

	authService := service.NewAuthService(store, store.Users(), jwtService, tokens)
	userService := service.NewUserService(store.Users(), nil, 0)
	orgService := service.NewOrganisationService(store.Organisations(), store.Users(), nil)

	e := echo.New()
	Register(
		e,
		metrics.New(),
		middleware.Authenticate(middleware.AuthConfig{JWT: jwtService, Tokens: tokens, Users: userService}),
		handler.NewAuthHandler(authService),
		handler.NewOrganisationHandler(orgService, userService),
		handler.NewUserHandler(userService),
	)
	return &testServer{e: e, jwt: jwtService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registration(firstName, email string) map[string]string {
	return map[string]string{
		"firstName": firstName,
		"lastName":  "Doe",
		"email":     email,
		"password":  "password123",
		"phone":     "1234567890",
	}
}

func (s *testServer) register(t *testing.T, firstName, email string) handler.AuthData {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", registration(firstName, email))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[envelope[handler.AuthData]](t, rec).Data
}

func (s *testServer) organisations(t *testing.T, token string) []handler.OrganisationResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/organisations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[envelope[handler.OrganisationList]](t, rec).Data.Organisations
}

func TestRegister_IssuesTokenAndDefaultOrganisation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", registration("John", "john@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[envelope[handler.AuthData]](t, rec)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Registration successful", body.Message)
	assert.Equal(t, "John", body.Data.User.FirstName)
	assert.Equal(t, "Doe", body.Data.User.LastName)
	assert.Equal(t, "john@example.com", body.Data.User.Email)
	assert.Equal(t, "1234567890", body.Data.User.Phone)
	assert.NotContains(t, rec.Body.String(), "password")

	claims, err := s.jwt.ValidateToken(body.Data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, body.Data.User.UserID, claims.UserID)
	assert.Equal(t, "john@example.com", claims.Email)
	assert.Equal(t, int64(3600), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())

	orgs := s.organisations(t, body.Data.AccessToken)
	require.Len(t, orgs, 1)
	assert.Equal(t, "John's Organisation", orgs[0].Name)
}

func TestRegister_MissingFieldIsReported(t *testing.T) {
	s := newTestServer(t)

	for _, field := range []string{"firstName", "lastName", "email", "password"} {
		t.Run(field, func(t *testing.T) {
			payload := registration("John", "missing-"+field+"@example.com")
			delete(payload, field)

			rec := s.do(t, http.MethodPost, "/auth/register", "", payload)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			body := decode[apperrors.ValidationErrorResponse](t, rec)
			require.Len(t, body.Errors, 1)
			assert.Equal(t, field, body.Errors[0].Field)
			assert.Contains(t, body.Errors[0].Message, "required")
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "John", "john@example.com")

	rec := s.do(t, http.MethodPost, "/auth/register", "", registration("Johnny", "john@example.com"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[apperrors.ValidationErrorResponse](t, rec)
	assert.Contains(t, body.Errors, apperrors.FieldError{Field: "email", Message: "Email already exists"})
}

func TestRegister_PasswordTooLong(t *testing.T) {
	s := newTestServer(t)
	payload := registration("John", "john@example.com")
	payload["password"] = strings.Repeat("p", 80)

	rec := s.do(t, http.MethodPost, "/auth/register", "", payload)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, apperrors.FieldErrors{{Field: "password", Message: "Password must be at most 72 bytes"}},
		decode[apperrors.ValidationErrorResponse](t, rec).Errors)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "john@example.com", "password": strings.Repeat("p", 80),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", `{"firstName":`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[apperrors.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.ErrorResponse{Status: "Bad request", Message: "Registration unsuccessful", StatusCode: 400}, body)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	registered := s.register(t, "John", "john@example.com")

	t.Run("success", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "john@example.com", "password": "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[envelope[handler.AuthData]](t, rec)
		assert.Equal(t, "Login successful", body.Message)
		assert.Equal(t, registered.User, body.Data.User)

		claims, err := s.jwt.ValidateToken(body.Data.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.User.UserID, claims.UserID)
	})

	t.Run("failures are generic", func(t *testing.T) {
		wrongPassword := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "john@example.com", "password": "nope",
		})
		unknownEmail := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "ghost@example.com", "password": "password123",
		})

		require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
		require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
		assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
		assert.Equal(t, "Authentication failed", decode[apperrors.ErrorResponse](t, wrongPassword).Message)
	})

	t.Run("validation", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decode[apperrors.ValidationErrorResponse](t, rec)
		assert.True(t, body.Errors.Has("email"))
		assert.True(t, body.Errors.Has("password"))
	})
}

func TestAccessControl_UnrelatedUsers(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")
	aliceOrg := s.organisations(t, alice.AccessToken)[0]

	rec := s.do(t, http.MethodGet, "/api/users/"+alice.User.UserID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/organisations/"+aliceOrg.OrgID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have access to this organisation", decode[apperrors.ErrorResponse](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/api/organisations/"+uuid.NewString(), bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/organisations/not-a-uuid", bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/organisations/"+aliceOrg.OrgID+"/users", bob.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/"+alice.User.UserID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.User, decode[envelope[handler.UserResponse]](t, rec).Data)
}

func TestAccessControl_SharedOrganisation(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")
	aliceOrg := s.organisations(t, alice.AccessToken)[0]

	rec := s.do(t, http.MethodPost, "/api/organisations/"+aliceOrg.OrgID+"/users", alice.AccessToken,
		map[string]string{"userId": bob.User.UserID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User added to organisation successfully", decode[envelope[any]](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/api/users/"+alice.User.UserID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.User, decode[envelope[handler.UserResponse]](t, rec).Data)

	rec = s.do(t, http.MethodGet, "/api/organisations/"+aliceOrg.OrgID, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, aliceOrg, decode[envelope[handler.OrganisationResponse]](t, rec).Data)

	assert.Len(t, s.organisations(t, bob.AccessToken), 2)

	rec = s.do(t, http.MethodGet, "/api/organisations/"+aliceOrg.OrgID+"/users", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decode[envelope[handler.MemberList]](t, rec).Data.Users
	assert.ElementsMatch(t, []handler.UserResponse{alice.User, bob.User}, members)
}

func TestOrganisations_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	john := s.register(t, "John", "john@example.com")

	for _, name := range []string{"X", "Y"} {
		rec := s.do(t, http.MethodPost, "/api/organisations", john.AccessToken,
			map[string]string{"name": name, "description": name + " team"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		body := decode[envelope[handler.OrganisationResponse]](t, rec)
		assert.Equal(t, "Organisation created successfully", body.Message)
		assert.Equal(t, name, body.Data.Name)
		assert.Equal(t, name+" team", body.Data.Description)
		_, err := uuid.Parse(body.Data.OrgID)
		assert.NoError(t, err)
	}

	names := make([]string, 0, 3)
	for _, org := range s.organisations(t, john.AccessToken) {
		names = append(names, org.Name)
	}
	assert.ElementsMatch(t, []string{"John's Organisation", "X", "Y"}, names)
}

func TestOrganisations_CreateValidation(t *testing.T) {
	s := newTestServer(t)
	john := s.register(t, "John", "john@example.com")

	tests := []struct {
		name string
		body interface{}
		want apperrors.FieldError
	}{
		{"missing name", map[string]string{"description": "d"}, apperrors.FieldError{Field: "name", Message: "Name is required"}},
		{"blank name", map[string]string{"name": "   "}, apperrors.FieldError{Field: "name", Message: "Name is required"}},
		{"name not a string", `{"name": 42}`, apperrors.FieldError{Field: "name", Message: "Name must be a string"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/organisations", john.AccessToken, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, apperrors.FieldErrors{tt.want}, decode[apperrors.ValidationErrorResponse](t, rec).Errors)
		})
	}

	assert.Len(t, s.organisations(t, john.AccessToken), 1)
}

func TestAddMember(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")
	orgPath := "/api/organisations/" + s.organisations(t, alice.AccessToken)[0].OrgID + "/users"

	t.Run("unknown user", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, orgPath, alice.AccessToken, map[string]string{"userId": uuid.NewString()})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "User not found", decode[apperrors.ErrorResponse](t, rec).Message)
	})

	t.Run("unknown organisation", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/organisations/"+uuid.NewString()+"/users", alice.AccessToken,
			map[string]string{"userId": bob.User.UserID})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Organisation not found", decode[apperrors.ErrorResponse](t, rec).Message)
	})

	t.Run("malformed user id", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, orgPath, alice.AccessToken, map[string]string{"userId": "bob"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, apperrors.FieldErrors{{Field: "userId", Message: "User ID must be a valid UUID"}},
			decode[apperrors.ValidationErrorResponse](t, rec).Errors)
	})

	t.Run("missing user id", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, orgPath, alice.AccessToken, map[string]string{})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, apperrors.FieldErrors{{Field: "userId", Message: "User ID is required"}},
			decode[apperrors.ValidationErrorResponse](t, rec).Errors)
	})

	t.Run("repeat add is a no-op", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := s.do(t, http.MethodPost, orgPath, alice.AccessToken, map[string]string{"userId": bob.User.UserID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}

		rec := s.do(t, http.MethodGet, orgPath, alice.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[envelope[handler.MemberList]](t, rec).Data.Users, 2)
	})
}

func TestAuthentication_Rejections(t *testing.T) {
	s := newTestServer(t)
	john := s.register(t, "John", "john@example.com")

	ghostToken, err := s.jwt.GenerateAccessToken(uuid.New(), "ghost@example.com")
	require.NoError(t, err)
	foreignToken, err := auth.NewJWTService("other-secret").GenerateAccessToken(uuid.MustParse(john.User.UserID), "john@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token " + john.AccessToken},
		{"garbage token", "Bearer not.a.jwt"},
		{"foreign signature", "Bearer " + foreignToken},
		{"unknown user", "Bearer " + ghostToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/organisations", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, apperrors.ErrorResponse{Status: "error", Message: "Unauthorized", StatusCode: 401},
				decode[apperrors.ErrorResponse](t, rec))
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t)
	john := s.register(t, "John", "john@example.com")

	rec := s.do(t, http.MethodPost, "/auth/logout", john.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/organisations", john.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "john@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[envelope[handler.AuthData]](t, rec).Data.AccessToken
	assert.Len(t, s.organisations(t, fresh), 1)
}

func TestLogout_FailsWhenRevocationCannotBeStored(t *testing.T) {
	s := newTestServerWithTokens(t, auth.NewTokenStore(nil))
	john := s.register(t, "John", "john@example.com")

	rec := s.do(t, http.MethodPost, "/auth/logout", john.AccessToken, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, apperrors.ErrorResponse{Status: "Internal Server Error", Message: "Internal server error", StatusCode: 500},
		decode[apperrors.ErrorResponse](t, rec))
	assert.NotContains(t, rec.Body.String(), "cache disabled")
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `route="/healthz"`), rec.Body.String())

	rec = s.do(t, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrorResponse{Status: "error", Message: "Not Found", StatusCode: 404},
		decode[apperrors.ErrorResponse](t, rec))
}
