package auth

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const SessionCookieName = "falcon_session"

// SessionCodec signs (and, with a block key, encrypts) the access token
// stored in the page session cookie.
type SessionCodec struct {
	cookie *securecookie.SecureCookie
	secure bool
}

func NewSessionCodec(hashKey, blockKey string, secure bool) *SessionCodec {
	var block []byte
	if blockKey != "" {
		block = []byte(blockKey)
	}
	return &SessionCodec{
		cookie: securecookie.New([]byte(hashKey), block).MaxAge(int(RefreshTokenExpiry.Seconds())),
		secure: secure,
	}
}

func (s *SessionCodec) Cookie(accessToken string) (*http.Cookie, error) {
	value, err := s.cookie.Encode(SessionCookieName, accessToken)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(AccessTokenExpiry.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Clear returns a cookie that deletes the session.
func (s *SessionCodec) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Token extracts the access token from a request's session cookie.
func (s *SessionCodec) Token(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	var token string
	if err := s.cookie.Decode(SessionCookieName, c.Value, &token); err != nil {
		return "", false
	}
	return token, true
}
