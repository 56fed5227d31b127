package proposal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateExperimentName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "exp1", true},
		{"punctuation", "mnist_v2.run-3", true},
		{"max length", strings.Repeat("a", MaxExperimentNameLength), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", MaxExperimentNameLength+1), false},
		{"space", "my exp", false},
		{"slash", "a/b", false},
		{"dot", ".", false},
		{"dot dot", "..", false},
		{"unicode", "expérience", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateExperimentName(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidExperimentName)
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateUsername("octocat"))
	assert.NoError(t, ValidateUsername("heda-bot-2"))
	assert.ErrorIs(t, ValidateUsername(""), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername("-leading"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername("has space"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername("../../etc"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername(strings.Repeat("a", 40)), ErrInvalidUsername)
}

func TestRepoName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "octocat-exp1", RepoName("octocat", "exp1"))
}
