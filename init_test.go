package av

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/av/internal/native"
)

func TestInitIdempotent(t *testing.T) {
	assert.NotPanics(t, Init)
	assert.NotPanics(t, Init)

	prevLogger := Logger()
	t.Cleanup(func() {
		require.NoError(t, Configure(DefaultConfig()))
		SetLogger(prevLogger)
	})
	require.NoError(t, InitWithConfig(DefaultConfig()))

	bad := DefaultConfig()
	bad.Log.Format = "xml"
	assert.ErrorIs(t, InitWithConfig(bad), ErrInvalidParameters)
}

func TestLockManager(t *testing.T) {
	assert.Equal(t, 1, lockManager(nil, native.LockCreate))

	var slot any
	require.Equal(t, 0, lockManager(&slot, native.LockCreate))
	require.IsType(t, &sync.Mutex{}, slot)

	require.Equal(t, 0, lockManager(&slot, native.LockObtain))
	assert.False(t, slot.(*sync.Mutex).TryLock(), "slot is held")
	require.Equal(t, 0, lockManager(&slot, native.LockRelease))
	assert.True(t, slot.(*sync.Mutex).TryLock())
	slot.(*sync.Mutex).Unlock()

	require.Equal(t, 0, lockManager(&slot, native.LockDestroy))
	assert.Nil(t, slot)

	wrong := any("not a mutex")
	assert.Equal(t, 1, lockManager(&wrong, native.LockObtain))
	assert.Equal(t, 1, lockManager(&wrong, native.LockRelease))
}
