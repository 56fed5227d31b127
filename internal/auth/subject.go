package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingSubject is returned when a token has no "sub" claim
	ErrMissingSubject = errors.New("token missing 'sub' claim")

	// ErrMalformedSubject is returned when "sub" is not of the form provider|id
	ErrMalformedSubject = errors.New("malformed 'sub' claim")

	// ErrUnsupportedProvider is returned when "sub" names a provider other than the expected one
	ErrUnsupportedProvider = errors.New("unsupported identity provider")

	// ErrInvalidUserID is returned when the id part of "sub" is empty
	ErrInvalidUserID = errors.New("invalid user id")
)

// Subject is a parsed "sub" claim
type Subject struct {
	Provider string
	UserID   string
}

// String returns the claim in its provider|id form
func (s Subject) String() string {
	return s.Provider + "|" + s.UserID
}

// ParseSubject splits sub at the first "|". When expectedProvider is not
// empty any other provider is rejected.
func ParseSubject(sub, expectedProvider string) (Subject, error) {
	if sub == "" {
		return Subject{}, ErrMissingSubject
	}
	provider, userID, ok := strings.Cut(sub, "|")
	if !ok {
		return Subject{}, ErrMalformedSubject
	}
	if expectedProvider != "" && provider != expectedProvider {
		return Subject{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if userID == "" {
		return Subject{}, ErrInvalidUserID
	}
	return Subject{Provider: provider, UserID: userID}, nil
}
