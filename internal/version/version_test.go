package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	v, commit, date := Info()
	assert.Equal(t, Version, v)
	assert.Equal(t, GitCommit, commit)
	assert.Equal(t, BuildDate, date)
}

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v1.2.0"

	assert.Equal(t, "v1.2.0 (commit: unknown, built: unknown)", String())
	assert.Equal(t, "v1.2.0", Map()["version"])
}
