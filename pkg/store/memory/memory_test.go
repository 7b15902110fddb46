package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
	"github.com/ajitpratap0/grantsync/pkg/store/storetest"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Client { return New() })
}

func TestCallCounting(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := New()

	seeded := s.Put(&models.Funder{LocalKey: "a"})
	assert.Equal(t, 0, s.Writes(), "seeding is not counted")

	_, err := s.FindByAttribute(ctx, models.KindFunder, models.AttrLocalKey, "a")
	require.NoError(t, err)
	_, err = s.ReadResource(ctx, seeded, models.KindFunder)
	require.NoError(t, err)
	_, err = s.CreateResource(ctx, &models.Funder{LocalKey: "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Calls("find", models.KindFunder))
	assert.Equal(t, 1, s.Calls("read", models.KindFunder))
	assert.Equal(t, 1, s.Calls("create", models.KindFunder))
	assert.Equal(t, 1, s.Writes())
	assert.Equal(t, 2, s.Len(models.KindFunder))

	s.ResetCalls()
	assert.Equal(t, 0, s.Writes())
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := New()
	ref := s.Put(&models.User{LocatorIDs: []string{"x"}})

	got, err := s.ReadResource(ctx, ref, models.KindUser)
	require.NoError(t, err)
	got.(*models.User).LocatorIDs[0] = "mutated"

	assert.Equal(t, []string{"x"}, s.Get(models.KindUser, ref).(*models.User).LocatorIDs)
}

func TestUpdateUnknownRef(t *testing.T) {
	err := New().UpdateResource(testutil.TestContext(t), &models.Grant{ID: "mem://Grant/99"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteLeavesIndexBroken(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := New()
	ref := s.Put(&models.Grant{LocalKey: "g"})
	s.Delete(models.KindGrant, ref)

	_, err := s.ReadResource(ctx, ref, models.KindGrant)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
