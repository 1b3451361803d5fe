package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// CookieName identifies the browser session cookie.
const CookieName = "agentflow_session"

const sessionTTL = 7 * 24 * time.Hour

// currentUser resolves the request to an authenticated user id, or "" when
// the request carries no valid session. AUTH_DEV_USER short-circuits the
// whole flow for local testing without the auth provider.
func (s *Server) currentUser(r *http.Request) string {
	if s.cfg.DevUserID != "" {
		return s.cfg.DevUserID
	}
	sid := sessionCookie(r)
	if sid == "" {
		return ""
	}
	sess, ok := s.sessions.Get(sid)
	if !ok {
		return ""
	}
	return sess.UserID
}

// GET /api/auth/status
// Returns { authenticated: bool, userId?, email? }
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"authenticated": false}
	if s.cfg.DevUserID != "" {
		resp["authenticated"] = true
		resp["userId"] = s.cfg.DevUserID
	} else if sid := sessionCookie(r); sid != "" {
		if sess, ok := s.sessions.Get(sid); ok {
			resp["authenticated"] = true
			resp["userId"] = sess.UserID
			if sess.Email != "" {
				resp["email"] = sess.Email
			}
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GET /api/auth/login
// Initiates the OAuth flow and returns { url } to redirect the browser
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil || s.oauthCfg.ClientID == "" || s.oauthCfg.ClientSecret == "" {
		s.writeError(w, http.StatusBadRequest, "oauth sign-in not configured")
		return
	}
	sid := newSessionID()
	state := randomState()
	s.sessions.SetOAuthState(sid, state)
	setSessionCookie(w, sid)
	url := s.oauthCfg.AuthCodeURL(state)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// GET /api/auth/callback?code=...&state=...
// Exchanges the code for a token, resolves the user, and opens the session.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		s.writeError(w, http.StatusBadRequest, "oauth sign-in not configured")
		return
	}
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		s.writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}
	sid, ok := s.sessions.TakeOAuthState(state)
	if !ok || sid == "" {
		s.writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	ctx := r.Context()
	tok, err := s.oauthCfg.Exchange(ctx, code)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	userID, email, err := s.fetchUserInfo(tok.AccessToken)
	if err != nil {
		log.Printf("[auth] userinfo lookup failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "failed to resolve user identity")
		return
	}

	if _, err := s.sessions.Create(sid, userID, email); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	setSessionCookie(w, sid)

	redirectURL := fmt.Sprintf("%s?auth=success", s.cfg.FrontendURL)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// POST /api/auth/signout
func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	if sid := sessionCookie(r); sid != "" {
		if err := s.sessions.Delete(sid); err != nil {
			log.Printf("[auth] failed to delete session %s: %v", sid, err)
		}
	}
	clearSessionCookie(w)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "signed_out"})
}

// fetchUserInfo asks the provider's userinfo endpoint for the subject and
// email claims; stdlib HTTP is enough here.
func (s *Server) fetchUserInfo(accessToken string) (userID, email string, err error) {
	if s.cfg.OAuthUserInfoURL == "" {
		return "", "", fmt.Errorf("userinfo endpoint not configured")
	}
	req, err := http.NewRequest(http.MethodGet, s.cfg.OAuthUserInfoURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}
	var body struct {
		Sub   string `json:"sub"`
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	userID = strings.TrimSpace(body.Sub)
	if userID == "" {
		userID = strings.TrimSpace(body.ID)
	}
	if userID == "" {
		return "", "", fmt.Errorf("userinfo response has no subject")
	}
	return userID, strings.TrimSpace(body.Email), nil
}

// setSessionCookie installs the HTTP-only session cookie. SameSite Lax keeps
// the cookie on the OAuth callback redirect.
func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionCookie returns the session id carried by the request, or "".
func sessionCookie(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func newSessionID() string {
	return fmt.Sprintf("s_%d", time.Now().UnixNano())
}

func randomState() string {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
