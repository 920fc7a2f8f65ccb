package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlow struct {
	state string
	err   error
}

func (f *fakeFlow) GetAuthURL(state string) string {
	f.state = state
	return "https://sso.example.com/auth?state=" + state
}

func (f *fakeFlow) ExchangeCode(_ context.Context, code string) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "id-token-for-" + code, time.Now().Add(time.Hour), nil
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginAndCallback(t *testing.T) {
	flow := &fakeFlow{}
	h := NewAuthHandler(flow, false, logger.NewNopLogger())

	rec := serve(h.Login, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	state := cookieByName(rec, stateCookie)
	require.NotNil(t, state)
	assert.Equal(t, flow.state, state.Value)
	assert.Equal(t, "https://sso.example.com/auth?state="+flow.state, rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/admin/callback?state="+state.Value+"&code=abc", nil)
	req.AddCookie(state)
	rec = serve(h.Callback, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/settings", rec.Header().Get("Location"))
	session := cookieByName(rec, auth.SessionCookie)
	require.NotNil(t, session)
	assert.Equal(t, "id-token-for-abc", session.Value)
	assert.True(t, session.HttpOnly)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	h := NewAuthHandler(&fakeFlow{}, false, logger.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/callback?state=other&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "expected"})
	rec := serve(h.Callback, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, cookieByName(rec, auth.SessionCookie))
}

func TestCallbackExchangeFailure(t *testing.T) {
	h := NewAuthHandler(&fakeFlow{err: errors.New("denied")}, false, logger.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/callback?state=s&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s"})
	rec := serve(h.Callback, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginWithoutProvider(t *testing.T) {
	h := NewAuthHandler(nil, false, logger.NewNopLogger())

	rec := serve(h.Login, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
