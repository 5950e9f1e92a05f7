package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pecportal/internal/portal"
	"pecportal/internal/profiles"
)

// SessionHandler exposes sign-up, sign-in and sign-out for the calling client and
// keeps the refresh-token cookie in step with the client's session.
type SessionHandler struct {
	logger       *slog.Logger
	secureCookie bool
}

// NewSessionHandler returns a session handler.
func NewSessionHandler(env string, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Status handles GET /api/session and returns the client's view state.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AppFromContext(r.Context()).Snapshot())
}

// Login handles POST /api/session.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	app := AppFromContext(r.Context())
	if _, err := app.SignIn(r.Context(), payload.Email, payload.Password); err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	h.storeRefreshToken(w, app)
	writeJSON(w, http.StatusOK, app.Snapshot())
}

// SignUp handles POST /api/session/signup.
func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name       string        `json:"name"`
		Email      string        `json:"email"`
		Password   string        `json:"password"`
		Role       profiles.Role `json:"role"`
		Department string        `json:"department"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	app := AppFromContext(r.Context())
	_, err := app.SignUp(r.Context(), portal.SignUpInput{
		Name:       payload.Name,
		Email:      payload.Email,
		Password:   payload.Password,
		Role:       payload.Role,
		Department: payload.Department,
	})
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	h.storeRefreshToken(w, app)
	writeJSON(w, http.StatusCreated, app.Snapshot())
}

// Logout handles DELETE /api/session. The local user is cleared even when the
// remote sign-out fails.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	nav := AppFromContext(r.Context()).SignOut(r.Context())
	h.clearRefreshToken(w)
	writeJSON(w, http.StatusOK, map[string]any{"navigation": nav})
}

// storeRefreshToken persists the client's refresh token so a restarted or
// evicted client can restore its session. Offline sessions have none.
func (h *SessionHandler) storeRefreshToken(w http.ResponseWriter, app *portal.App) {
	token := app.RefreshToken()
	if token == "" {
		h.clearRefreshToken(w)
		return
	}
	http.SetCookie(w, refreshCookie(token, refreshCookieTTL, h.secureCookie))
}

func (h *SessionHandler) clearRefreshToken(w http.ResponseWriter) {
	cookie := refreshCookie("", 0, h.secureCookie)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func refreshCookie(value string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	}
}
