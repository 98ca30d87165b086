package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeychain(t *testing.T) {
	keyring.MockInit()
	k := NewKeychain("")

	password, err := k.GetPassword("libera")
	require.NoError(t, err)
	assert.Empty(t, password)

	require.NoError(t, k.StorePassword("Libera", "hunter2"))
	password, err = k.GetPassword("libera")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)

	// Separate services do not share entries
	other := NewKeychain("cascade-test")
	password, err = other.GetPassword("libera")
	require.NoError(t, err)
	assert.Empty(t, password)

	require.NoError(t, k.StorePassword("libera", ""))
	password, err = k.GetPassword("libera")
	require.NoError(t, err)
	assert.Empty(t, password)

	require.NoError(t, k.DeletePassword("never-stored"))
}
