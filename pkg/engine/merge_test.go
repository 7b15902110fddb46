package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func TestDefaultComparatorFunder(t *testing.T) {
	cmp := engine.DefaultComparator{}
	stored := &models.Funder{ID: "f/1", LocalKey: "jhu:funder:1", Name: testutil.Ptr("NIH"), Policy: "p/1"}

	assert.Nil(t, cmp.MergeFunder(&models.Funder{LocalKey: "jhu:funder:1", Name: testutil.Ptr("NIH"), Policy: "p/1"}, stored))
	assert.Nil(t, cmp.MergeFunder(&models.Funder{LocalKey: "jhu:funder:1"}, stored), "absent fields never blank stored ones")
	assert.Nil(t, cmp.MergeFunder(&models.Funder{LocalKey: "jhu:funder:1", Name: testutil.Ptr("")}, stored))

	merged := cmp.MergeFunder(&models.Funder{LocalKey: "jhu:funder:1", Name: testutil.Ptr("National Institutes of Health")}, stored)
	require.NotNil(t, merged)
	assert.Equal(t, "National Institutes of Health", *merged.Name)
	assert.Equal(t, "p/1", merged.Policy)
	assert.Equal(t, models.Reference("f/1"), merged.ID)
	assert.Equal(t, "NIH", *stored.Name, "stored copy is left untouched")
}

func TestDefaultComparatorUser(t *testing.T) {
	cmp := engine.DefaultComparator{}
	stored := &models.User{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@jhu.edu",
		LocatorIDs: []string{"jhu:jhed:ada1"},
		Roles:      []models.Role{models.RoleAdmin},
	}

	same := &models.User{FirstName: "Ada", LastName: "Lovelace", LocatorIDs: []string{"jhu:jhed:ada1"}, Roles: []models.Role{models.RoleSubmitter}}
	assert.Nil(t, cmp.MergeUser(same, stored), "roles are not compared")

	merged := cmp.MergeUser(&models.User{FirstName: "Ada", LocatorIDs: []string{"jhu:employeeid:7"}}, stored)
	require.NotNil(t, merged)
	assert.Equal(t, []string{"jhu:jhed:ada1", "jhu:employeeid:7"}, merged.LocatorIDs)
	assert.Equal(t, "ada@jhu.edu", merged.Email)
	assert.Equal(t, []models.Role{models.RoleAdmin}, merged.Roles)
	assert.Equal(t, []string{"jhu:jhed:ada1"}, stored.LocatorIDs)
}

func TestDefaultComparatorGrant(t *testing.T) {
	cmp := engine.DefaultComparator{}
	start := time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)
	stored := &models.Grant{
		LocalKey:    "jhu:grant:G1",
		AwardStatus: models.AwardStatusActive,
		StartDate:   &start,
		PI:          "u/1",
		CoPIs:       []models.Reference{"u/2"},
	}

	sameStart := start
	candidate := &models.Grant{LocalKey: "jhu:grant:G1", StartDate: &sameStart, PI: "u/1", CoPIs: []models.Reference{"u/2"}}
	assert.Nil(t, cmp.MergeGrant(candidate, stored), "unknown status and equal dates change nothing")

	candidate.CoPIs = []models.Reference{"u/3", "u/2"}
	candidate.AwardStatus = models.AwardStatusTerminated
	merged := cmp.MergeGrant(candidate, stored)
	require.NotNil(t, merged)
	assert.Equal(t, []models.Reference{"u/2", "u/3"}, merged.CoPIs)
	assert.Equal(t, models.AwardStatusTerminated, merged.AwardStatus)
	assert.Equal(t, []models.Reference{"u/2"}, stored.CoPIs)

	candidate = &models.Grant{LocalKey: "jhu:grant:G1"}
	assert.Nil(t, cmp.MergeGrant(candidate, stored), "an empty coPi list never removes investigators")
}
