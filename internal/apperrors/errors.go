package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email is used by another account")
	ErrEmailConfirmed    = errors.New("email already confirmed")

	// Auth guard failures. All of them map to 401 on the HTTP layer.
	ErrMissingAuthHeader    = errors.New("missing auth header")
	ErrInvalidAccessToken   = errors.New("invalid or expired access token")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	// Reset and verification token failures are deliberately collapsed:
	// the caller must not learn whether the token was malformed or expired.
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
	ErrVerifyTokenInvalid = errors.New("verification token invalid or expired")

	// A concurrent reset request already stored a token for the same user
	ErrResetTokenConflict = errors.New("reset token already issued for the user")

	ErrTeamNotFound = errors.New("team not found")
)

// InvalidInputError reports validation failures on user supplied fields as a
// field -> message mapping, the way the API returns them.
type InvalidInputError struct {
	Message string
	Fields  map[string]string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

func NewInvalidInput(message string, fields map[string]string) *InvalidInputError {
	return &InvalidInputError{Message: message, Fields: fields}
}

// AsInvalidInput unwraps err to *InvalidInputError if possible
func AsInvalidInput(err error) (*InvalidInputError, bool) {
	var e *InvalidInputError
	ok := errors.As(err, &e)
	return e, ok
}
