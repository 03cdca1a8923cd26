package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/pkg/utils"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context) ([]models.UserPublic, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.UserPublic)
	return list, args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, email, hash, fullName string, role models.Role) (*models.User, error) {
	args := m.Called(ctx, email, hash, fullName, role)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func post(h gin.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/", h)
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("shabbat-shalom")
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "gabbai@example.org", PasswordHash: hash, Role: models.RoleAdmin}

	store := new(MockUserStore)
	store.On("GetByEmail", mock.Anything, "gabbai@example.org").Return(user, nil)
	store.On("GetByEmail", mock.Anything, "nobody@example.org").Return(nil, ErrUserNotFound)
	jwt := NewJWTService("secret", 1)
	h := NewHandler(store, jwt, nil)

	w := post(h.Login, LoginRequest{Email: "gabbai@example.org", Password: "shabbat-shalom"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	claims, err := jwt.Validate(env.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.NotContains(t, w.Body.String(), hash)

	assert.Equal(t, http.StatusUnauthorized, post(h.Login, LoginRequest{Email: "gabbai@example.org", Password: "wrong-password"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post(h.Login, LoginRequest{Email: "nobody@example.org", Password: "whatever1"}).Code)
}

func TestCreateUser(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetByEmail", mock.Anything, "taken@example.org").Return(&models.User{}, nil)
	store.On("GetByEmail", mock.Anything, "new@example.org").Return(nil, ErrUserNotFound)
	store.On("Create", mock.Anything, "new@example.org", mock.AnythingOfType("string"), "Sarah Cohen", models.RoleAdmin).
		Return(&models.User{ID: uuid.New(), Email: "new@example.org", FullName: "Sarah Cohen", Role: models.RoleAdmin}, nil)
	h := NewHandler(store, NewJWTService("secret", 1), nil)

	w := post(h.CreateUser, CreateUserRequest{Email: "New@example.org", Password: "long-enough", FullName: "Sarah Cohen"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(h.CreateUser, CreateUserRequest{Email: "taken@example.org", Password: "long-enough", FullName: "X"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(h.CreateUser, CreateUserRequest{Email: "new@example.org", Password: "long-enough", FullName: "X", Role: "rabbi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h.CreateUser, CreateUserRequest{Email: "new@example.org", Password: "short", FullName: "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNumberOfCalls(t, "Create", 1)
}
