package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookshelf/backend/internal/common"
	"github.com/bookshelf/backend/internal/models"
)

// ---- fake user store ----

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]models.User
	err     error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]models.User{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, username, email, hashedPw string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byEmail {
		if u.Username == username || u.Email == email {
			return nil, common.ErrAlreadyExists
		}
	}
	u := models.User{ID: uuid.NewString(), Username: username, Email: email, Password: hashedPw, CreatedAt: time.Now()}
	f.byEmail[email] = u
	out := u
	out.Password = ""
	return &out, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.Password = ""
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

// ---- helpers ----

func newTestHandler() (*Handler, *fakeUsers, *TokenService) {
	users := newFakeUsers()
	tokens := NewTokenService([]byte("secret"), time.Hour)
	h := NewHandler(users, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.hashCost = bcrypt.MinCost
	return h, users, tokens
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) models.AuthResponse {
	t.Helper()
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ---- tests ----

func TestRegister_TokenResolvesToCreatedUser(t *testing.T) {
	h, users, tokens := newTestHandler()

	rec := post(h.Register, `{"username":"alice","email":"Alice@Example.com","password":"pw12345"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeAuth(t, rec)
	require.NotEmpty(t, resp.Token)

	stored, err := users.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, resp.UserID)

	sub, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, sub)

	assert.NotEqual(t, "pw12345", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("pw12345")))
}

func TestRegister_Validation(t *testing.T) {
	h, users, _ := newTestHandler()

	longPassword := strings.Repeat("a", 80)
	longUsername := strings.Repeat("u", 51)
	longEmail := strings.Repeat("e", 250) + "@b.com"

	cases := map[string]struct {
		body  string
		field string
	}{
		"missing username":  {`{"email":"a@b.c","password":"x"}`, ""},
		"missing email":     {`{"username":"alice","password":"x"}`, ""},
		"missing password":  {`{"username":"alice","email":"a@b.c"}`, ""},
		"blank username":    {`{"username":"   ","email":"a@b.c","password":"x"}`, ""},
		"password too long": {`{"username":"alice","email":"a@b.c","password":"` + longPassword + `"}`, "password"},
		"username too long": {`{"username":"` + longUsername + `","email":"a@b.c","password":"x"}`, "username"},
		"email too long":    {`{"username":"alice","email":"` + longEmail + `","password":"x"}`, "email"},
		"email format":      {`{"username":"alice","email":"not-an-email","password":"x"}`, "email"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(h.Register, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var msg models.MessageResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
			assert.NotEmpty(t, msg.Message)
			assert.Equal(t, tc.field, msg.Field)
		})
	}

	rec := post(h.Register, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, users.byEmail)
}

func TestRegister_LengthLimitsInclusive(t *testing.T) {
	h, _, _ := newTestHandler()

	body := `{"username":"` + strings.Repeat("u", 50) + `","email":"a@b.c","password":"` + strings.Repeat("p", 72) + `"}`
	rec := post(h.Register, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := post(h.Register, `{"username":"alice","email":"a@b.c","password":"x"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(h.Register, `{"username":"alice","email":"other@b.c","password":"x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_StoreFailure(t *testing.T) {
	h, users, _ := newTestHandler()
	users.err = errors.New("db down")

	rec := post(h.Register, `{"username":"alice","email":"a@b.c","password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal error"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	h, _, tokens := newTestHandler()

	rec := post(h.Register, `{"username":"alice","email":"a@b.c","password":"correct"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	registered := decodeAuth(t, rec)

	rec = post(h.Login, `{"email":"A@B.C","password":"correct"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAuth(t, rec)
	assert.Equal(t, registered.UserID, resp.UserID)

	sub, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, sub)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := post(h.Register, `{"username":"alice","email":"a@b.c","password":"correct"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, body := range []string{
		`{"email":"a@b.c","password":"wrong"}`,
		`{"email":"nobody@b.c","password":"correct"}`,
	} {
		rec := post(h.Login, body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, body)
		assert.JSONEq(t, `{"message":"invalid credentials"}`, rec.Body.String())
	}
}

func TestLogin_UnknownEmailStillComparesHash(t *testing.T) {
	h, _, _ := newTestHandler()
	require.Nil(t, h.dummyHash)

	rec := post(h.Login, `{"email":"nobody@b.c","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NotEmpty(t, h.dummyHash)
	cost, err := bcrypt.Cost(h.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, h.hashCost, cost)
}

func TestMe(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := post(h.Register, `{"username":"alice","email":"a@b.c","password":"x"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := decodeAuth(t, rec).UserID

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), userID))
	rec = httptest.NewRecorder()
	h.Me(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, userID, raw["_id"])
	assert.Equal(t, "alice", raw["username"])
	assert.NotContains(t, raw, "password")
}

func TestMe_Unauthenticated(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(ContextWithUserID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := UserIDFromContext(ContextWithUserID(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}
