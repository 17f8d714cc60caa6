package auth

import (
	"net/http"
	"time"
)

// MockToken is accepted as a bearer token by MockAuth
const MockToken = "dev-admin-token"

// MockAuth provides a mock authentication for local development
type MockAuth struct {
	sessions *sessions
	user     User
}

// NewMockAuth creates a mock provider that signs everyone in as a dev admin
func NewMockAuth() *MockAuth {
	return &MockAuth{
		sessions: newSessions(),
		user: User{
			ID:       "dev-user-123",
			Email:    "dev@pool.local",
			Name:     "Dev User",
			Username: "devuser",
			Groups:   []string{"users", AdminGroup},
		},
	}
}

// LoginHandler for mock auth - auto-creates a session
func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	user := m.user
	session := m.sessions.create(&user, nil, 24*time.Hour)

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Expires:  session.ExpiresAt,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CallbackHandler is not needed for mock auth
func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler for mock auth
func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	m.sessions.drop(r)
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Authenticate accepts a mock session cookie or MockToken
func (m *MockAuth) Authenticate(r *http.Request) (*User, bool) {
	if user, ok := m.sessions.lookup(r); ok {
		return user, true
	}
	if token, ok := bearerToken(r); ok && token == MockToken {
		user := m.user
		return &user, true
	}
	return nil, false
}
