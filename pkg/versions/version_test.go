package versions

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVersionInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		wantVersion   string
		wantBuildDate string
	}{
		{
			name:          "release build",
			version:       "v1.2.0",
			commit:        "0123456789abcdef",
			buildDate:     "2025-03-01T10:00:00Z",
			wantVersion:   "v1.2.0",
			wantBuildDate: "2025-03-01 10:00:00 UTC",
		},
		{
			name:          "dev build uses short commit",
			version:       "dev",
			commit:        "0123456789abcdef",
			buildDate:     unknownStr,
			wantVersion:   "build-01234567",
			wantBuildDate: unknownStr,
		},
		{
			name:          "unparseable date kept verbatim",
			version:       "v0.1.0",
			commit:        unknownStr,
			buildDate:     "yesterday",
			wantVersion:   "v0.1.0",
			wantBuildDate: "yesterday",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := newVersionInfo(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantBuildDate, info.BuildDate)
			assert.Equal(t, runtime.Version(), info.GoVersion)
			assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
			assert.Contains(t, info.String(), tt.wantVersion)
		})
	}
}

func TestVCSSettings(t *testing.T) {
	t.Parallel()

	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "feedface"},
		{Key: "vcs.time", Value: "2025-01-01T00:00:00Z"},
	}

	commit, date := vcsSettings(settings, unknownStr, unknownStr)
	assert.Equal(t, "feedface", commit)
	assert.Equal(t, "2025-01-01T00:00:00Z", date)

	commit, date = vcsSettings(settings, "pinned", "pinned-date")
	assert.Equal(t, "pinned", commit)
	assert.Equal(t, "pinned-date", date)
}
