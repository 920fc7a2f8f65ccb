package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/google/uuid"
)

const (
	stateCookie  = "ean_oauth_state"
	stateTTL     = 10 * time.Minute
	loginPage    = "/admin/login"
	settingsPage = "/admin/settings"
)

// OAuthFlow - вход в админку через внешний провайдер (Keycloak)
type OAuthFlow interface {
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, time.Time, error)
}

var _ OAuthFlow = (*auth.KeycloakClient)(nil)

// AuthHandler обслуживает вход в админку
type AuthHandler struct {
	flow   OAuthFlow
	secure bool
	logger interfaces.LoggerPort
}

// NewAuthHandler создает обработчик входа. flow может быть nil, если Keycloak выключен.
func NewAuthHandler(flow OAuthFlow, secureCookies bool, logger interfaces.LoggerPort) *AuthHandler {
	return &AuthHandler{flow: flow, secure: secureCookies, logger: logger}
}

// Login перенаправляет на страницу входа провайдера
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		http.Error(w, "Interactive login is not configured.", http.StatusUnauthorized)
		return
	}

	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/admin",
		Expires:  time.Now().Add(stateTTL),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.flow.GetAuthURL(state), http.StatusFound)
}

// Callback обменивает код авторизации на id_token и сохраняет его в cookie сессии
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		http.Error(w, "Interactive login is not configured.", http.StatusUnauthorized)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		h.logger.WarnWithContext(r.Context(), "Невалидный state при входе в админку")
		http.Error(w, "Invalid login state.", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code.", http.StatusBadRequest)
		return
	}

	idToken, expiry, err := h.flow.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка входа в админку",
			interfaces.LogField{Key: "error", Value: err.Error()})
		http.Error(w, "Login failed.", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    idToken,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, settingsPage, http.StatusFound)
}

// RedirectToLogin отправляет неаутентифицированного пользователя админки на вход
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPage, http.StatusFound)
}
