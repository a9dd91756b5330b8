package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := opener
	opener = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { opener = prev })
}

func TestSetThenGet(t *testing.T) {
	useArrayKeyring(t)

	require.NoError(t, Set("imap/alice@example.com", "hunter2"))

	got, err := Get("imap/alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestGetMissingKey(t *testing.T) {
	useArrayKeyring(t)

	_, err := Get("imap/nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, keyring.ErrKeyNotFound))
}

func TestOpenFailure(t *testing.T) {
	prev := opener
	opener = func() (keyring.Keyring, error) { return nil, errors.New("no backend") }
	t.Cleanup(func() { opener = prev })

	_, err := Get("anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening keyring")
}
