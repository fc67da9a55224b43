package identity

import "errors"

// AuthError codes, named after the hosted provider's error codes.
const (
	CodeInvalidEmail      = "invalid-email"
	CodeWeakPassword      = "weak-password"
	CodeEmailInUse        = "email-already-in-use"
	CodeInvalidCredential = "invalid-credential"
	CodeInvalidToken      = "invalid-token"
)

type AuthError struct {
	Code string
	Msg  string
}

func (e *AuthError) Error() string {
	return e.Msg
}

var (
	ErrInvalidEmail      = &AuthError{CodeInvalidEmail, "The email address is badly formatted."}
	ErrWeakPassword      = &AuthError{CodeWeakPassword, "The given password is invalid. [ Password should be at least 6 characters ]"}
	ErrEmailInUse        = &AuthError{CodeEmailInUse, "The email address is already in use by another account."}
	ErrInvalidCredential = &AuthError{CodeInvalidCredential, "The supplied auth credential is incorrect, malformed or has expired."}
	ErrInvalidToken      = &AuthError{CodeInvalidToken, "The session token is invalid or has been revoked."}
)

// IsAuthError reports whether err is, or wraps, an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
