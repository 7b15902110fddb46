package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/store"
	"github.com/ajitpratap0/grantsync/pkg/store/memory"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func TestRegistry(t *testing.T) {
	r := store.NewRegistry()
	open := func(context.Context, *config.StoreConfig) (store.Client, error) { return memory.New(), nil }

	require.NoError(t, r.Register("b", open))
	require.NoError(t, r.Register("a", open))
	assert.Equal(t, []string{"a", "b"}, r.List())
	assert.True(t, r.Has("a"))

	err := r.Register("a", open)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	c, err := r.Open(testutil.TestContext(t), &config.StoreConfig{Type: "a"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, c)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := store.NewRegistry().Open(testutil.TestContext(t), &config.StoreConfig{Type: "fcrepo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store backend fcrepo not found")
}

func TestOpenKeepsUnavailableErrors(t *testing.T) {
	r := store.NewRegistry()
	require.NoError(t, r.Register("down", func(context.Context, *config.StoreConfig) (store.Client, error) {
		return nil, errors.New(errors.ErrorTypeStoreUnavailable, "connection refused")
	}))
	require.NoError(t, r.Register("broken", func(context.Context, *config.StoreConfig) (store.Client, error) {
		return nil, fmt.Errorf("bad path")
	}))

	_, err := r.Open(testutil.TestContext(t), &config.StoreConfig{Type: "down"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeStoreUnavailable))

	_, err = r.Open(testutil.TestContext(t), &config.StoreConfig{Type: "broken"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestGlobalRegistryHasMemory(t *testing.T) {
	assert.Contains(t, store.Backends(), config.StoreMemory)

	c, err := store.Open(testutil.TestContext(t), &config.StoreConfig{Type: config.StoreMemory})
	require.NoError(t, err)
	assert.NoError(t, store.Close(c))
}
