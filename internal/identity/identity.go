// Package identity signs users in and out with email and password.
package identity

import (
	"context"
	"errors"
)

// Error codes reported by providers.
const (
	CodeUserNotFound      = "user-not-found"
	CodeWrongPassword     = "wrong-password"
	CodeEmailAlreadyInUse = "email-already-in-use"
	CodeWeakPassword      = "weak-password"
	CodeInvalidEmail      = "invalid-email"
	CodeTooManyRequests   = "too-many-requests"
	CodeInternal          = "internal-error"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// The anonymous demo session.
const (
	DemoUserID    = "demo-user"
	DemoUserEmail = "demo@example.com"
)

// ErrNoUser is returned when an operation needs a signed-in user.
var ErrNoUser = errors.New("no user signed in")

// Error is a provider failure with a stable code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "identity: " + e.Code + ": " + e.Err.Error()
	}
	return "identity: " + e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the provider code carried by err, or "".
func CodeOf(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// User is a signed-in identity.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Anonymous   bool   `json:"isAnonymous"`
}

// DemoUser is the anonymous session used when no provider is configured.
func DemoUser() *User {
	return &User{UID: DemoUserID, Email: DemoUserEmail, Anonymous: true}
}

// Provider is an email and password identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context, uid string) error
	UpdateDisplayName(ctx context.Context, uid, name string) error
}
