// Package validate checks user supplied registration fields. Failures are
// reported as field -> message maps so handlers can return them verbatim.
package validate

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^([0-9a-zA-Z]([-.\w]*[0-9a-zA-Z])*@[0-9a-zA-Z][-\w]*[0-9a-zA-Z]\.)+[a-zA-Z]{2,9}$`)

const minPasswordLen = 8

// Email reports whether the string is a valid email address
func Email(email string) bool {
	return emailRe.MatchString(strings.TrimSpace(email))
}

// Username validates a username: at least 3 characters and not an email
// address
func Username(username string) map[string]string {
	errs := map[string]string{}

	if len(strings.TrimSpace(username)) < 3 {
		errs["username"] = "Username needs to be at least 3 characters long"
	}
	if Email(username) {
		errs["username"] = "The username can't be an email address"
	}

	return errs
}

// EmailField validates an email the way Username validates usernames
func EmailField(email string) map[string]string {
	errs := map[string]string{}

	if strings.TrimSpace(email) == "" {
		errs["email"] = "e-mail must not be empty"
	} else if !Email(email) {
		errs["email"] = "e-mail must be a valid address"
	}

	return errs
}

// Password validates a password pair: length first, match second
func Password(password string, confirmPassword string) map[string]string {
	errs := map[string]string{}

	switch {
	case len(password) < minPasswordLen:
		errs["password"] = "Password must be at least 8 characters"
	case password != confirmPassword:
		errs["confirmPassword"] = "Passwords must match"
	}

	return errs
}

// RegisterInput validates all registration fields at once
func RegisterInput(username string, password string, confirmPassword string, email string) map[string]string {
	errs := map[string]string{}

	for _, part := range []map[string]string{
		Username(username),
		EmailField(email),
		Password(password, confirmPassword),
	} {
		for field, message := range part {
			errs[field] = message
		}
	}

	return errs
}
