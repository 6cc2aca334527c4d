package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmUnless_Force(t *testing.T) {
	ok, err := ConfirmUnless(true, "Flush all flows?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsYes(t *testing.T) {
	for _, s := range []string{"y", "Y", "yes", " YES "} {
		assert.True(t, isYes(s), s)
	}
	for _, s := range []string{"", "n", "no", "yep"} {
		assert.False(t, isYes(s), s)
	}
}
