package socket

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is where the web client carries its session token.
const SessionCookie = "disco.session-token"

var errMissingToken = errors.New("no session token provided")

// UserData is the authenticated identity attached to a connection.
type UserData struct {
	ID       string
	Username string
}

type sessionClaims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// authenticate extracts and verifies the session token before any queue or
// match state is touched. The token is read from the session cookie, the
// Authorization header, or a token query parameter, in that order.
func authenticate(r *http.Request, secret string) (UserData, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return UserData{}, errMissingToken
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return UserData{}, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid || claims.ID == "" {
		return UserData{}, errors.New("missing token id")
	}
	return UserData{ID: claims.ID, Username: claims.Username}, nil
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
