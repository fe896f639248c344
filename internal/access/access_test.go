package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	v := NewVerifier("watermark-access-2026")

	assert.NoError(t, v.Verify("watermark-access-2026"))
	assert.ErrorIs(t, v.Verify("watermark-access-2025"), ErrInvalidSecret)
	assert.ErrorIs(t, v.Verify(""), ErrInvalidSecret)
	assert.Equal(t, "Invalid access secret", v.Verify("nope").Error())

	assert.ErrorIs(t, NewVerifier("").Verify("anything"), ErrInvalidSecret)
}

func TestGate_UnlockAndClear(t *testing.T) {
	g := NewGate("secret")

	_, ok := g.CurrentAccessToken()
	require.False(t, ok)

	assert.ErrorIs(t, g.Unlock("wrong"), ErrInvalidSecret)
	assert.False(t, g.Unlocked())

	require.NoError(t, g.Unlock(" secret "))
	token, ok := g.CurrentAccessToken()
	assert.True(t, ok)
	assert.Equal(t, "secret", token)

	g.Clear()
	assert.False(t, g.Unlocked())
}

func TestGate_UnlockFromFragment(t *testing.T) {
	g := NewGate("watermark-access-2026")

	require.NoError(t, g.UnlockFromFragment("https://eraser.example.com/upload?x=1#watermark-access-2026"))
	token, _ := g.CurrentAccessToken()
	assert.Equal(t, "watermark-access-2026", token)

	g.Clear()
	assert.ErrorIs(t, g.UnlockFromFragment("https://eraser.example.com/"), ErrInvalidSecret)
	assert.ErrorIs(t, g.UnlockFromFragment("https://eraser.example.com/#bad"), ErrInvalidSecret)
	assert.Error(t, g.UnlockFromFragment("://broken"))
}

func TestGate_ShareLinkRoundTrip(t *testing.T) {
	g := NewGate("watermark-access-2026")

	_, ok, err := g.ShareLink("https://eraser.example.com/app")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Unlock("watermark-access-2026"))
	link, ok, err := g.ShareLink("https://eraser.example.com/app#stale")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://eraser.example.com/app#watermark-access-2026", link)

	other := NewGate("watermark-access-2026")
	require.NoError(t, other.UnlockFromFragment(link))
	assert.True(t, other.Unlocked())

	_, _, err = g.ShareLink("://broken")
	assert.Error(t, err)
}

func TestGate_NoExpectedSecretAcceptsAny(t *testing.T) {
	g := NewGate("")
	require.NoError(t, g.Unlock("whatever"))
	assert.ErrorIs(t, g.Unlock("  "), ErrInvalidSecret)
}

func TestStaticGate(t *testing.T) {
	token, ok := StaticGate("abc").CurrentAccessToken()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = StaticGate("").CurrentAccessToken()
	assert.False(t, ok)
}
