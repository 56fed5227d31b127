package proposal

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxExperimentNameLength bounds experiment names so repository names stay
// within GitHub's limit
const MaxExperimentNameLength = 100

var (
	// ErrInvalidExperimentName is returned for names GitHub would not accept in a repository name
	ErrInvalidExperimentName = errors.New("invalid experiment name")

	// ErrInvalidUsername is returned for strings that cannot be GitHub logins
	ErrInvalidUsername = errors.New("invalid GitHub username")

	experimentNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	usernamePattern       = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
)

// ValidateExperimentName checks name against the allowed repository name characters
func ValidateExperimentName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidExperimentName)
	case len(name) > MaxExperimentNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidExperimentName, MaxExperimentNameLength)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidExperimentName, name)
	case !experimentNamePattern.MatchString(name):
		return fmt.Errorf("%w: %q may only contain letters, digits, '.', '_' and '-'", ErrInvalidExperimentName, name)
	}
	return nil
}

// ValidateUsername checks that username has the shape of a GitHub login
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return nil
}

// RepoName returns the GitOps repository name of a user's experiment
func RepoName(username, experiment string) string {
	return username + "-" + experiment
}
