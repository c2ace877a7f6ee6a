package services

import (
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"

	"github.com/justbri/moviepicker/config"
)

const (
	sessionName   = "moviepicker-session"
	sessionUserID = "user_id"
)

type SessionManager struct {
	store *sessions.CookieStore
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	store := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Session.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store}
}

func (m *SessionManager) Get(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, sessionName)
}

// Login stores the user id in the session cookie.
func (m *SessionManager) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, err := m.Get(r)
	if err != nil && session == nil {
		return err
	}
	session.Values[sessionUserID] = userID
	return session.Save(r, w)
}

// Logout expires the session cookie.
func (m *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	session, err := m.Get(r)
	if err != nil && session == nil {
		return err
	}
	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// UserID returns the signed-in user id. ok is false for anonymous requests.
func (m *SessionManager) UserID(r *http.Request) (int64, bool) {
	session, err := m.Get(r)
	if err != nil {
		return 0, false
	}
	return parseUserID(session.Values[sessionUserID])
}

func parseUserID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
