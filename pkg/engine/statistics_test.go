package engine_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/store/memory"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestReportGrantRun(t *testing.T) {
	eng := newEngine(t, memory.New())
	rows := []engine.Row{
		grantRow("G1", "F1", "E1", "P", "2020-01-01 00:00:00.0", nil),
		grantRow("G1", "F1", "E2", "C", "2020-01-02 00:00:00.0", nil),
		grantRow("G2", "F2", "E2", "P", "2020-01-01 12:00:00.0", nil),
	}
	res, err := eng.Synchronize(testutil.TestContext(t), rows, engine.ModeGrant)
	require.NoError(t, err)

	newGolden(t).Assert(t, "grant_report", []byte(res.Report()))
}

func TestReportUserRun(t *testing.T) {
	stats := engine.Statistics{
		Mode:              engine.ModeUser,
		UsersUpdated:      4,
		RowsProcessed:     6,
		EntitiesProcessed: 6,
		LatestWatermark:   "2020-05-05 10:00:00.0",
	}
	newGolden(t).Assert(t, "user_report", []byte(stats.Report()))
}

func TestReportFunderRun(t *testing.T) {
	stats := engine.Statistics{
		Mode:              engine.ModeFunder,
		FundersCreated:    1,
		FundersUpdated:    2,
		RowsProcessed:     3,
		EntitiesProcessed: 3,
	}
	newGolden(t).Assert(t, "funder_report", []byte(stats.Report()))
}

func TestStatisticsWrites(t *testing.T) {
	s := engine.Statistics{FundersCreated: 1, UsersUpdated: 2, GrantsCreated: 3, PIsAdded: 9}
	assert.Equal(t, 6, s.Writes())
}
