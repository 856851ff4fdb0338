package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(s *Server, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return s.echo.NewContext(req, rec), rec
}

func TestLoginCreatesAccountOnFirstUse(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, &fakeQueue{})

	form := url.Values{
		"username": {"ANO"},
		"password": {"123e4567-e89b-12d3-a456-426614174000"},
	}
	c, rec := formRequest(s, "/api/account/login", form)
	require.NoError(t, s.login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.usersByAccount, 1)
	assert.Len(t, store.sessions, 1)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginReusesExistingAccount(t *testing.T) {
	store := newFakeStore()
	store.usersByAccount["123e4567-e89b-12d3-a456-426614174000"] = 77
	s := newTestServer(store, &fakeQueue{})

	form := url.Values{
		"username": {"ANO"},
		"password": {"123e4567-e89b-12d3-a456-426614174000"},
	}
	c, rec := formRequest(s, "/api/account/login", form)
	require.NoError(t, s.login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":77`)
	assert.Len(t, store.usersByAccount, 1, "no second user created")
}

func TestLoginRejectsBadInput(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeQueue{})

	cases := []url.Values{
		{"username": {"admin"}, "password": {"123e4567-e89b-12d3-a456-426614174000"}},
		{"username": {"ANO"}, "password": {"not-a-uuid"}},
		{"username": {"ANO"}, "password": {""}},
	}
	for _, form := range cases {
		c, _ := formRequest(s, "/api/account/login", form)
		err := s.login(c)
		assert.Equal(t, http.StatusBadRequest, httpStatus(t, err), "form: %v", form)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeQueue{})

	c, rec := request(s, http.MethodPost, "/api/account/logout", "")
	require.NoError(t, s.logout(c))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthRoundTrip(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, &fakeQueue{})

	token, err := issueToken(s.cfg.Server.AuthSecret, 2, 10)
	require.NoError(t, err)

	handler := requireAuth(s.cfg.Server.AuthSecret, store)(func(c echo.Context) error {
		assert.Equal(t, int64(2), currentUserID(c))
		assert.Equal(t, int64(10), currentSessionID(c))
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.AddCookie(newAuthCookie(token))
	rec := httptest.NewRecorder()
	require.NoError(t, handler(s.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	// The middleware healed the session row.
	assert.Equal(t, int64(2), store.sessions[10])
}

func TestAuthRejectsTamperedToken(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, &fakeQueue{})

	token, err := issueToken("some-other-secret", 2, 10)
	require.NoError(t, err)

	handler := requireAuth(s.cfg.Server.AuthSecret, store)(func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.AddCookie(newAuthCookie(token))
	rec := httptest.NewRecorder()
	err = handler(s.echo.NewContext(req, rec))

	assert.Equal(t, http.StatusUnauthorized, httpStatus(t, err))
}

func TestAuthRejectsMissingToken(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeQueue{})

	handler := requireAuth(s.cfg.Server.AuthSecret, s.store)(func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	err := handler(s.echo.NewContext(req, rec))

	assert.Equal(t, http.StatusUnauthorized, httpStatus(t, err))
}
