package http

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pecportal/internal/identity"
)

const (
	oauthStateCookieName = "pecportal_oauth_state"
	oauthStateCookieTTL  = 10 * time.Minute
	oauthCookiePath      = "/api/auth"
)

type googleAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, *identity.GoogleClaims, error)
	IsEmailAllowed(email string) bool
}

// oauthState travels through Google as the state parameter. Nonce must match
// the state cookie; Return is the portal path to land on afterwards.
type oauthState struct {
	Nonce  string `json:"s"`
	Return string `json:"r,omitempty"`
}

func (s oauthState) encode() string {
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeOAuthState(value string) (oauthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return oauthState{}, err
	}
	var s oauthState
	if err := json.Unmarshal(raw, &s); err != nil {
		return oauthState{}, err
	}
	return s, nil
}

// safeReturnPath returns p when it is a path on this site, otherwise "/".
// Backslashes are rejected because browsers treat "/\host" like "//host".
func safeReturnPath(p string) string {
	decoded, err := url.QueryUnescape(p)
	if err != nil || !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") || strings.Contains(decoded, `\`) {
		return "/"
	}
	u, err := url.Parse(decoded)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return p
}

// authFailure is reported to the frontend, which opens its sign-in dialog
// with the message.
type authFailure struct {
	code    string
	message string
}

var (
	failSessionExpired = authFailure{"invalid_request", "Session expired. Please try again."}
	failBadState       = authFailure{"invalid_request", "Invalid state. Please try again."}
	failMissingCode    = authFailure{"invalid_request", "Missing authorization code."}
	failExchange       = authFailure{"exchange_error", "Failed to complete authentication."}
	failUnverified     = authFailure{"email_not_verified", "Please verify your Google email address."}
	failNotCampus      = authFailure{"access_denied", "Use your campus Google account to sign in."}
	failSignIn         = authFailure{"internal_error", "Failed to sign in."}
)

// OAuthHandler runs campus Google sign-in for the calling browser client.
type OAuthHandler struct {
	google       googleAuthenticator
	logger       *slog.Logger
	secureCookie bool
	frontendURL  string
}

func NewOAuthHandler(google googleAuthenticator, frontendURL, env string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		google:       google,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		frontendURL:  strings.TrimSuffix(frontendURL, "/"),
	}
}

// InitiateGoogle handles GET /api/auth/google?redirectTo=/clubs.
func (h *OAuthHandler) InitiateGoogle(w http.ResponseWriter, r *http.Request) {
	nonce, err := identity.GenerateState()
	if err != nil {
		h.logger.Error("generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setStateCookie(w, nonce, int(oauthStateCookieTTL.Seconds()))

	state := oauthState{Nonce: nonce}
	if p := r.URL.Query().Get("redirectTo"); p != "" {
		if safe := safeReturnPath(p); safe != "/" {
			state.Return = safe
		}
	}
	http.Redirect(w, r, h.google.AuthURL(state.encode()), http.StatusTemporaryRedirect)
}

// CallbackGoogle handles GET /api/auth/google/callback. A verified campus
// account signs the client in through its portal App, exactly like a
// password sign-in, and the browser is sent back to the frontend.
func (h *OAuthHandler) CallbackGoogle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	state, fail := h.checkState(w, r)
	if fail != nil {
		h.fail(w, r, *fail)
		return
	}

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warn("google sign-in refused", "error", providerErr)
		h.fail(w, r, authFailure{providerErr, query.Get("error_description")})
		return
	}
	code := query.Get("code")
	if code == "" {
		h.fail(w, r, failMissingCode)
		return
	}

	if fail := h.signIn(w, r, code); fail != nil {
		h.fail(w, r, *fail)
		return
	}

	returnTo := "/"
	if state.Return != "" {
		returnTo = safeReturnPath(state.Return)
	}
	http.Redirect(w, r, h.frontendURL+returnTo, http.StatusTemporaryRedirect)
}

// checkState validates the state parameter against the cookie and clears the cookie.
func (h *OAuthHandler) checkState(w http.ResponseWriter, r *http.Request) (oauthState, *authFailure) {
	cookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("google callback without state cookie")
		return oauthState{}, &failSessionExpired
	}

	state, err := decodeOAuthState(r.URL.Query().Get("state"))
	if err != nil || subtle.ConstantTimeCompare([]byte(state.Nonce), []byte(cookie.Value)) != 1 {
		h.logger.Warn("google callback with invalid state")
		return oauthState{}, &failBadState
	}

	h.setStateCookie(w, "", -1)
	return state, nil
}

func (h *OAuthHandler) signIn(w http.ResponseWriter, r *http.Request, code string) *authFailure {
	rawIDToken, claims, err := h.google.Exchange(r.Context(), code)
	switch {
	case errors.Is(err, identity.ErrEmailNotAllowed):
		h.logger.Warn("google account outside campus allowlist")
		return &failNotCampus
	case err != nil:
		h.logger.Error("google code exchange", "error", err)
		return &failExchange
	case !claims.EmailVerified:
		h.logger.Warn("google email not verified", "email", claims.Email)
		return &failUnverified
	case !h.google.IsEmailAllowed(claims.Email):
		h.logger.Warn("google account outside campus allowlist", "email", claims.Email)
		return &failNotCampus
	}

	app := AppFromContext(r.Context())
	user, err := app.SignInWithIDToken(r.Context(), "google", rawIDToken)
	if err != nil {
		h.logger.Error("google sign-in", "email", claims.Email, "error", err)
		return &failSignIn
	}
	if token := app.RefreshToken(); token != "" {
		http.SetCookie(w, refreshCookie(token, refreshCookieTTL, h.secureCookie))
	}

	if user != nil {
		h.logger.Info("google sign-in", "user_id", user.ID, "role", user.Role)
	} else {
		// The profile row is created asynchronously; the App resolves it when it appears.
		h.logger.Info("google sign-in pending profile", "email", claims.Email)
	}
	return nil
}

func (h *OAuthHandler) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    value,
		Path:     oauthCookiePath,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// fail sends the browser to the portal home with the failure in the query.
func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, f authFailure) {
	q := url.Values{"auth_error": {f.code}}
	if f.message != "" {
		q.Set("message", f.message)
	}
	http.Redirect(w, r, h.frontendURL+"/?"+q.Encode(), http.StatusTemporaryRedirect)
}
