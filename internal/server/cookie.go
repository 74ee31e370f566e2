package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie holding the signed client token.
const CookieName = "inv_session"

var errInvalidToken = errors.New("invalid client token")

// Cookies issues and verifies the HS256 tokens that identify a browser
// client.
type Cookies struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCookies creates Cookies signing with secret. Tokens expire after ttl.
func NewCookies(secret string, ttl time.Duration) *Cookies {
	return &Cookies{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for clientID.
func (c *Cookies) Issue(clientID string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": clientID,
		"iat":       now.Unix(),
		"exp":       now.Add(c.ttl).Unix(),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign client token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its client id.
func (c *Cookies) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errInvalidToken
	}
	clientID, ok := claims["client_id"].(string)
	if !ok || clientID == "" {
		return "", errInvalidToken
	}
	return clientID, nil
}

// Resolve returns the client id carried by the request cookie. When the
// cookie is missing or invalid a new client id is minted and the cookie is
// set on w.
func (c *Cookies) Resolve(w http.ResponseWriter, req *http.Request) (string, error) {
	if cookie, err := req.Cookie(CookieName); err == nil {
		if clientID, err := c.Parse(cookie.Value); err == nil {
			return clientID, nil
		}
	}

	clientID := uuid.NewString()
	token, err := c.Issue(clientID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return clientID, nil
}
