// Package storetest holds the behavioural checks every store.Client backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

// Run exercises open against the store.Client contract. open must return
// an empty store for every call.
func Run(t *testing.T, open func(t *testing.T) store.Client) {
	t.Run("CreateThenFindByLocalKey", func(t *testing.T) {
		ctx := testutil.TestContext(t)
		c := open(t)

		ref, err := c.CreateResource(ctx, &models.Funder{
			LocalKey: "johnshopkins.edu:funder:20000123",
			Name:     testutil.Ptr("National Science Foundation"),
		})
		require.NoError(t, err)
		require.NotEmpty(t, ref)

		found, err := c.FindByAttribute(ctx, models.KindFunder, models.AttrLocalKey, "johnshopkins.edu:funder:20000123")
		require.NoError(t, err)
		assert.Equal(t, ref, found)

		missing, err := c.FindByAttribute(ctx, models.KindFunder, models.AttrLocalKey, "johnshopkins.edu:funder:0")
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("LookupIsScopedByKind", func(t *testing.T) {
		ctx := testutil.TestContext(t)
		c := open(t)

		_, err := c.CreateResource(ctx, &models.Funder{LocalKey: "shared"})
		require.NoError(t, err)

		found, err := c.FindByAttribute(ctx, models.KindGrant, models.AttrLocalKey, "shared")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("FindUserByAnyLocator", func(t *testing.T) {
		ctx := testutil.TestContext(t)
		c := open(t)

		ref, err := c.CreateResource(ctx, &models.User{
			FirstName:  "Amanda",
			LastName:   "Reckondwith",
			LocatorIDs: []string{"johnshopkins.edu:employeeid:0000222", "johnshopkins.edu:jhed:areckon1"},
			Roles:      []models.Role{models.RoleSubmitter},
		})
		require.NoError(t, err)

		for _, locator := range []string{"johnshopkins.edu:employeeid:0000222", "johnshopkins.edu:jhed:areckon1"} {
			found, err := c.FindByAttribute(ctx, models.KindUser, models.AttrLocatorIDs, locator)
			require.NoError(t, err)
			assert.Equal(t, ref, found, locator)
		}
	})

	t.Run("ReadReturnsStoredGrant", func(t *testing.T) {
		ctx := testutil.TestContext(t)
		c := open(t)

		awarded := time.Date(2018, 12, 12, 0, 0, 0, 0, time.UTC)
		in := &models.Grant{
			LocalKey:      "johnshopkins.edu:grant:90045678",
			AwardNumber:   "R01EB022546",
			AwardStatus:   models.AwardStatusActive,
			ProjectName:   "Imaging the living brain",
			AwardDate:     &awarded,
			DirectFunder:  "direct",
			PrimaryFunder: "primary",
			PI:            "pi",
			CoPIs:         []models.Reference{"co1", "co2"},
		}
		ref, err := c.CreateResource(ctx, in)
		require.NoError(t, err)

		got, err := c.ReadResource(ctx, ref, models.KindGrant)
		require.NoError(t, err)
		g, ok := got.(*models.Grant)
		require.True(t, ok)
		assert.Equal(t, ref, g.ID)
		assert.Equal(t, in.LocalKey, g.LocalKey)
		assert.Equal(t, in.AwardNumber, g.AwardNumber)
		assert.Equal(t, in.AwardStatus, g.AwardStatus)
		assert.Equal(t, in.CoPIs, g.CoPIs)
		require.NotNil(t, g.AwardDate)
		assert.True(t, awarded.Equal(*g.AwardDate))
		assert.Nil(t, g.EndDate)
	})

	t.Run("UpdateReplacesEntity", func(t *testing.T) {
		ctx := testutil.TestContext(t)
		c := open(t)

		ref, err := c.CreateResource(ctx, &models.User{
			FirstName:  "Marsha",
			LocatorIDs: []string{"johnshopkins.edu:employeeid:0000333"},
		})
		require.NoError(t, err)

		got, err := c.ReadResource(ctx, ref, models.KindUser)
		require.NoError(t, err)
		u := got.(*models.User)
		u.Email = "marsha@jhu.edu"
		u.LocatorIDs = append(u.LocatorIDs, "johnshopkins.edu:hopkinsid:A1B2C3")
		require.NoError(t, c.UpdateResource(ctx, u))

		got, err = c.ReadResource(ctx, ref, models.KindUser)
		require.NoError(t, err)
		assert.Equal(t, "marsha@jhu.edu", got.(*models.User).Email)

		found, err := c.FindByAttribute(ctx, models.KindUser, models.AttrLocatorIDs, "johnshopkins.edu:hopkinsid:A1B2C3")
		require.NoError(t, err)
		assert.Equal(t, ref, found, "added locators are indexed")
	})

	t.Run("ReadMissingIsNotFound", func(t *testing.T) {
		ctx := testutil.TestContext(t)
		c := open(t)

		ref, err := c.CreateResource(ctx, &models.Funder{LocalKey: "k"})
		require.NoError(t, err)

		_, err = c.ReadResource(ctx, ref, models.KindGrant)
		require.Error(t, err)
		assert.False(t, errors.HasType(err, errors.ErrorTypeStoreUnavailable))
	})
}
