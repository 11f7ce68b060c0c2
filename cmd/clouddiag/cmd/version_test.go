package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2024-01-15")
	t.Cleanup(func() { SetVersion("", "", "") })

	out, err := runCommand(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "clouddiag v1.2.3")
	assert.Contains(t, out, "commit: abc123def")
	assert.Contains(t, out, "built:  2024-01-15")
	assert.Contains(t, out, "go:")
}
