package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/openworld/internal/auth"
	"github.com/sakif/openworld/internal/model"
	"github.com/sakif/openworld/internal/service"
)

// Fallback messages for failures the client should not see the details of.
const (
	MsgInvalidBody    = "Invalid request body"
	MsgRegisterFailed = "Error creating user"
	MsgLoginFailed    = "Error during login"
	MsgProfileFailed  = "Error fetching user"
	MsgRegistered     = "User registered successfully"
)

const oauthStateCookieName = "oauth_state"

// Authenticator is the part of service.AuthService the auth endpoints use.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	SignInGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*service.AuthResult, error)
	Me(ctx context.Context, identity *auth.Identity) (*model.User, error)
}

// GitHubSignIn is the OAuth provider behind the optional GitHub routes.
type GitHubSignIn interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves registration, password login and GitHub sign-in.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a password account
//   - HandleLogin          → check credentials, return a bearer token
//   - HandleMe             → return the caller's own account
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, find or create the user, hand
//     the token to the frontend
type AuthHandler struct {
	auth   Authenticator
	github GitHubSignIn // nil when GitHub sign-in is not configured
	// clientOrigin is where the browser is sent after GitHub sign-in.
	clientOrigin string
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(authn Authenticator, github GitHubSignIn, clientOrigin string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         authn,
		github:       github,
		clientOrigin: clientOrigin,
		logger:       logger,
	}
}

// credentialsRequest is the body of both register and login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	Token string `json:"token"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// REQUEST BODY: {"email": "a@b.c", "password": "secret"}
// RESPONSE: 201 {"message": "User registered successfully"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid register JSON", slog.String("error", err.Error()))
		writeBadRequest(w, MsgInvalidBody)
		return
	}

	if _, err := h.auth.Register(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, err, MsgRegisterFailed)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: MsgRegistered})
}

// HandleLogin exchanges an email and password for a bearer token.
//
// HTTP: POST /api/login
// REQUEST BODY: {"email": "a@b.c", "password": "secret"}
// RESPONSE: 200 {"token": "<jwt>"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid login JSON", slog.String("error", err.Error()))
		writeBadRequest(w, MsgInvalidBody)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err, MsgLoginFailed)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: result.Token})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value is stored in a short-lived HttpOnly cookie and sent
// to GitHub. HandleGitHubCallback only accepts a callback that echoes the
// same value, which proves the flow was started by this browser.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find or create the catalog account and issue a token
//  4. Redirect to <CLIENT_ORIGIN>/#token=<jwt>
//
// The token travels in the URL fragment, which browsers never send to a
// server, so it does not end up in access logs on the way to the frontend.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeBadRequest(w, "Invalid OAuth state")
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeBadRequest(w, "Invalid OAuth state")
		return
	}

	// Single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.clientOrigin+"/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeBadRequest(w, "Missing OAuth code")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "GitHub authentication failed"})
		return
	}

	result, err := h.auth.SignInGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err, MsgLoginFailed)
		return
	}

	fragment := url.Values{"token": {result.Token}}.Encode()
	http.Redirect(w, r, h.clientOrigin+"/#"+fragment, http.StatusSeeOther)
}

// HandleMe returns the currently authenticated user's account.
//
// HTTP: GET /api/me
// Auth: Required
//
// The frontend calls this on load to check that a stored token still belongs
// to an existing account and to show who is signed in.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	user, err := h.auth.Me(r.Context(), identity)
	if err != nil {
		writeError(w, err, MsgProfileFailed)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
