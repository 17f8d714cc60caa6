package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
)

// AdminGroup is the Authentik group allowed to change results and slots
const AdminGroup = "admins"

// AuthentikConfig holds the configuration for Authentik OAuth2/OIDC
type AuthentikConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// User represents an authenticated user
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// Session represents a user session
type Session struct {
	ID        string
	User      *User
	Token     *oauth2.Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AuthProvider is a common interface for authentication providers
type AuthProvider interface {
	LoginHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	// Authenticate returns the user behind a session cookie or bearer token
	Authenticate(r *http.Request) (*User, bool)
}

type contextKey struct{}

// sessions is an in-memory session table keyed by cookie value
type sessions struct {
	mu    sync.RWMutex
	byID  map[string]*Session
	clock func() time.Time
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]*Session), clock: time.Now}
}

func (s *sessions) create(user *User, token *oauth2.Token, ttl time.Duration) *Session {
	now := s.clock()
	session := &Session{
		ID:        generateSessionID(),
		User:      user,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if token != nil && !token.Expiry.IsZero() {
		session.ExpiresAt = token.Expiry
	}

	s.mu.Lock()
	s.byID[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *sessions) lookup(r *http.Request) (*User, bool) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	session, ok := s.byID[cookie.Value]
	s.mu.RUnlock()

	if !ok || s.clock().After(session.ExpiresAt) {
		return nil, false
	}
	return session.User, true
}

func (s *sessions) drop(r *http.Request) {
	if cookie, err := r.Cookie("session_id"); err == nil {
		s.mu.Lock()
		delete(s.byID, cookie.Value)
		s.mu.Unlock()
	}
}

// AuthentikAuth manages authentication with Authentik
type AuthentikAuth struct {
	config       *AuthentikConfig
	oauth2Config *oauth2.Config
	sessions     *sessions
	client       *http.Client
}

// NewAuthentikAuth creates a new Authentik authentication handler
func NewAuthentikAuth(config *AuthentikConfig) *AuthentikAuth {
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "profile", "email"}
	}
	base := strings.TrimRight(config.BaseURL, "/")

	return &AuthentikAuth{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/application/o/authorize/",
				TokenURL: base + "/application/o/token/",
			},
		},
		sessions: newSessions(),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// LoginHandler initiates the OAuth2 login flow
func (a *AuthentikAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state := generateState()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the OAuth2 callback from Authentik
func (a *AuthentikAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Warn("Token exchange failed", "error", err)
		http.Error(w, "Failed to exchange token", http.StatusBadGateway)
		return
	}

	user, err := a.userInfo(r.Context(), token)
	if err != nil {
		logger.Warn("Userinfo lookup failed", "error", err)
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	session := a.sessions.create(user, token, 8*time.Hour)
	logger.Info("User logged in", "user", user.Username, "admin", IsAdmin(user))

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler handles user logout
func (a *AuthentikAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	a.sessions.drop(r)
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "", Path: "/", MaxAge: -1})

	logoutURL := fmt.Sprintf("%s/application/o/knockout-pool/end-session/", strings.TrimRight(a.config.BaseURL, "/"))
	http.Redirect(w, r, logoutURL, http.StatusSeeOther)
}

// Authenticate accepts a session cookie or an Authentik access token in
// the Authorization header
func (a *AuthentikAuth) Authenticate(r *http.Request) (*User, bool) {
	if user, ok := a.sessions.lookup(r); ok {
		return user, true
	}

	raw, ok := bearerToken(r)
	if !ok {
		return nil, false
	}
	user, err := a.userInfo(r.Context(), &oauth2.Token{AccessToken: raw, TokenType: "Bearer"})
	if err != nil {
		logger.Debug("Bearer token rejected", "error", err)
		return nil, false
	}
	return user, true
}

// userInfo fetches user information from Authentik
func (a *AuthentikAuth) userInfo(ctx context.Context, token *oauth2.Token) (*User, error) {
	userInfoURL := strings.TrimRight(a.config.BaseURL, "/") + "/application/o/userinfo/"

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	client := a.oauth2Config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to get user info: %s - %s", resp.Status, string(body))
	}

	var info struct {
		Sub               string   `json:"sub"`
		Email             string   `json:"email"`
		Name              string   `json:"name"`
		PreferredUsername string   `json:"preferred_username"`
		Groups            []string `json:"groups"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}

	return &User{
		ID:       info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Username: info.PreferredUsername,
		Groups:   info.Groups,
	}, nil
}

// RequireAdmin rejects requests without an authenticated admin. API
// callers get status codes instead of login redirects.
func RequireAdmin(p AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := p.Authenticate(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !IsAdmin(user) {
				http.Error(w, "Forbidden: Admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
		})
	}
}

// GetUser retrieves the authenticated user from the request context
func GetUser(r *http.Request) *User {
	user, _ := r.Context().Value(contextKey{}).(*User)
	return user
}

// IsAdmin checks if the user has admin privileges
func IsAdmin(user *User) bool {
	if user == nil {
		return false
	}
	for _, group := range user.Groups {
		if group == AdminGroup {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}

// generateState generates a random state string for CSRF protection
func generateState() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

func generateSessionID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
