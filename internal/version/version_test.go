package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		info        debug.BuildInfo
		version     string
		commit      string
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "go install",
			info:        debug.BuildInfo{Main: debug.Module{Version: "v0.3.1"}},
			version:     "unknown",
			wantVersion: "v0.3.1",
		},
		{
			name: "local build from a dirty checkout",
			info: debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			version:     "unknown",
			wantVersion: "unknown",
			wantCommit:  "0123456789ab+dirty",
		},
		{
			name: "ldflags win",
			info: debug.BuildInfo{
				Main:     debug.Module{Version: "v0.3.1"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fedcba"}},
			},
			version:     "v1.0.0",
			commit:      "abc123",
			wantVersion: "v1.0.0",
			wantCommit:  "abc123",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := fromBuildInfo(&tt.info, tt.version, tt.commit)
			assert.Equal(t, tt.wantVersion, v)
			assert.Equal(t, tt.wantCommit, c)
		})
	}
}

func TestString(t *testing.T) {
	prevVersion, prevCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = prevVersion, prevCommit })

	Version, Commit = "v1.0.0", ""
	assert.Equal(t, "v1.0.0", String())

	Commit = "abc123"
	assert.Equal(t, "v1.0.0 (abc123)", String())
}
