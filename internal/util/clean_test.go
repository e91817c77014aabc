package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skald/internal/util"
)

func TestIsLikelyBinary(t *testing.T) {
	assert.True(t, util.IsLikelyBinary([]byte{0x25, 0x50, 0x44, 0x46, 0x00, 0x01}))
	assert.False(t, util.IsLikelyBinary([]byte("plain text content")))
}

func TestCleanFileContentStripsBOM(t *testing.T) {
	out, err := util.CleanFileContent([]byte("\xEF\xBB\xBFhello"), "test")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCleanFileContentReplacesSmartPunctuation(t *testing.T) {
	out, err := util.CleanFileContent([]byte("“quoted” and ‘single’"), "test")
	require.NoError(t, err)
	assert.Equal(t, `"quoted" and 'single'`, out)
}

func TestCleanFileContentRepairsInvalidUTF8(t *testing.T) {
	out, err := util.CleanFileContent([]byte{'o', 'k', 0xFF, 'o', 'k'}, "test")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.True(t, len(out) >= 4)
}
