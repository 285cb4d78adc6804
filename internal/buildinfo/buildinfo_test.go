package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortPrefersVersion(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "v1.2.3", "abcdef0123456789"
	assert.Equal(t, "v1.2.3", Short())

	Version = "dev"
	assert.Equal(t, "abcdef012345", Short())
}
