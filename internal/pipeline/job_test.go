package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/notify"
	"github.com/ajitpratap0/grantsync/pkg/store/memory"
	_ "github.com/ajitpratap0/grantsync/pkg/store/pass" // registers the pass backend
	"github.com/ajitpratap0/grantsync/pkg/store/pass/passtest"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

type windowSource struct {
	rows  []engine.Row
	calls [][2]string
}

func (s *windowSource) Rows(_ context.Context, _ engine.Mode, start, end string) ([]engine.Row, error) {
	s.calls = append(s.calls, [2]string{start, end})
	return s.rows, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*notify.Report
}

func (n *recordingNotifier) Notify(_ context.Context, r *notify.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) last(t *testing.T) *notify.Report {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.reports)
	return n.reports[len(n.reports)-1]
}

func grantRows() []engine.Row {
	base := map[string]string{
		engine.ColGrantLocalKey:        "90045678",
		engine.ColGrantAwardNumber:     "R01EB022546",
		engine.ColGrantAwardStatus:     "Active",
		engine.ColGrantProjectName:     "Imaging the living brain",
		engine.ColGrantAwardDate:       "2018-06-01 00:00:00.0",
		engine.ColDirectFunderLocalKey: "20000123",
		engine.ColDirectFunderName:     "National Institutes of Health",
		engine.ColUserEmployeeID:       "0000222",
		engine.ColUserFirstName:        "Amanda",
		engine.ColUserLastName:         "Reckondwith",
		engine.ColUserEmail:            "areckon1@jhu.edu",
		engine.ColAbbreviatedRole:      "P",
		engine.ColUpdateTimestamp:      "2018-12-12 14:08:14.0",
	}
	co := make(map[string]string, len(base))
	for k, v := range base {
		co[k] = v
	}
	co[engine.ColUserEmployeeID] = "0000333"
	co[engine.ColUserFirstName] = "Marsha"
	co[engine.ColUserEmail] = "marsha@jhu.edu"
	co[engine.ColAbbreviatedRole] = "C"
	co[engine.ColUpdateTimestamp] = "2019-01-01 00:00:00.0"
	return []engine.Row{engine.NewRow(base), engine.NewRow(co)}
}

func testConfig(t *testing.T) *config.SyncConfig {
	t.Helper()
	cfg := config.NewSyncConfig()
	cfg.Watermark.File = filepath.Join(t.TempDir(), "updates.txt")
	cfg.Notify.Type = config.NotifyNone
	return cfg
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"": ActionSync, "sync": ActionSync, "pull": ActionPull, "load": ActionLoad} {
		got, err := ParseAction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAction("push")
	assert.Error(t, err)
}

func TestDeploymentOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.Deployment = "harvard"
	cfg.PolicyBaseURL = "https://pass.harvard.edu/fcrepo/rest/policies"
	d, err := Deployment(cfg)
	require.NoError(t, err)
	assert.Equal(t, "harvard.edu", d.Domain)
	assert.Equal(t, cfg.PolicyBaseURL, d.PolicyBaseURL)

	cfg.Deployment = "stanford"
	_, err = Deployment(cfg)
	assert.Error(t, err)
}

func TestSyncRecordsWatermarkAndReports(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testConfig(t)
	src := &windowSource{rows: grantRows()}
	st := memory.New()
	n := &recordingNotifier{}

	job, err := New(cfg, WithSource(src), WithStore(st), WithNotifier(n))
	require.NoError(t, err)
	defer func() { _ = job.Close() }()

	out, err := job.Run(ctx, Request{Mode: engine.ModeGrant, Start: "2018-01-01 00:00:00.0"})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 2, out.Rows)
	assert.Empty(t, out.Dump)
	assert.Equal(t, 1, out.Result.Statistics.GrantsCreated)
	assert.Equal(t, 1, st.Len(models.KindGrant))
	assert.Equal(t, [][2]string{{"2018-01-01 00:00:00.0", ""}}, src.calls)

	data, err := os.ReadFile(cfg.Watermark.File)
	require.NoError(t, err)
	assert.Equal(t, "2019-01-01 00:00:00.0\n", string(data))

	r := n.last(t)
	assert.True(t, r.Succeeded)
	assert.Equal(t, out.RunID, r.RunID)
	assert.Equal(t, "2019-01-01 00:00:00.0", r.Watermark)
	assert.Equal(t, out.Result.Report(), r.Summary)

	// the next run starts where the history left off
	_, err = job.Run(ctx, Request{Mode: engine.ModeGrant})
	require.NoError(t, err)
	require.Len(t, src.calls, 2)
	assert.Equal(t, "2019-01-01 00:00:00.0", src.calls[1][0])
	assert.Equal(t, 1, st.Len(models.KindGrant), "second run is idempotent")
}

func TestPullThenLoad(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testConfig(t)
	cfg.Dump.Compression = config.CompressionZstd
	st := memory.New()
	n := &recordingNotifier{}

	job, err := New(cfg, WithSource(&windowSource{rows: grantRows()}), WithStore(st), WithNotifier(n))
	require.NoError(t, err)

	location := filepath.Join(t.TempDir(), "grants.json.zst")
	out, err := job.Run(ctx, Request{Mode: engine.ModeGrant, Action: ActionPull, File: location})
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	assert.Equal(t, location, out.Dump)
	assert.Equal(t, 0, st.Len(models.KindGrant), "pull never touches the store")
	assert.Contains(t, n.last(t).Summary, "Pulled 2 grant rows")
	_, err = os.Stat(cfg.Watermark.File)
	assert.True(t, os.IsNotExist(err), "pull does not advance the watermark")

	out, err = job.Run(ctx, Request{Action: ActionLoad, File: location})
	require.NoError(t, err)
	assert.Equal(t, engine.ModeGrant, out.Mode, "mode comes from the dump")
	assert.Equal(t, 1, st.Len(models.KindGrant))
	assert.Equal(t, 2, st.Len(models.KindUser))
}

func TestLoadModeMismatch(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testConfig(t)
	job, err := New(cfg, WithSource(&windowSource{rows: grantRows()}), WithStore(memory.New()))
	require.NoError(t, err)

	location := filepath.Join(t.TempDir(), "grants.json")
	_, err = job.Run(ctx, Request{Mode: engine.ModeGrant, Action: ActionPull, File: location})
	require.NoError(t, err)

	_, err = job.Run(ctx, Request{Mode: engine.ModeUser, Action: ActionLoad, File: location})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfigMismatch))
}

func TestDryRunLeavesStoreAndHistory(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testConfig(t)
	st := memory.New()

	job, err := New(cfg, WithSource(&windowSource{rows: grantRows()}), WithStore(st))
	require.NoError(t, err)

	out, err := job.Run(ctx, Request{Mode: engine.ModeGrant, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.Statistics.GrantsCreated)
	assert.Equal(t, 0, st.Len(models.KindGrant))
	_, err = os.Stat(cfg.Watermark.File)
	assert.True(t, os.IsNotExist(err))
}

func TestFailureIsReported(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testConfig(t)
	n := &recordingNotifier{}
	job, err := New(cfg, WithSource(&windowSource{rows: grantRows()}), WithStore(memory.New()), WithNotifier(n))
	require.NoError(t, err)

	_, err = job.Run(ctx, Request{Mode: engine.ModeFunder})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfigMismatch))

	r := n.last(t)
	assert.False(t, r.Succeeded)
	assert.Equal(t, err.Error(), r.Error)
	_, serr := os.Stat(cfg.Watermark.File)
	assert.True(t, os.IsNotExist(serr))
}

func TestRequestValidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	job, err := New(testConfig(t), WithSource(&windowSource{}), WithStore(memory.New()))
	require.NoError(t, err)

	_, err = job.Run(ctx, Request{Mode: "sponsor"})
	assert.Error(t, err)
	_, err = job.Run(ctx, Request{Action: ActionLoad})
	assert.Error(t, err)
}

func TestSyncAgainstPASS(t *testing.T) {
	ctx := testutil.TestContext(t)
	srv := passtest.NewServer(t)
	cfg := testConfig(t)
	cfg.Store.Type = config.StorePASS
	cfg.Store.PASS.BaseURL = srv.BaseURL()

	job, err := New(cfg, WithSource(&windowSource{rows: grantRows()}))
	require.NoError(t, err)

	out, err := job.Run(ctx, Request{Mode: engine.ModeGrant})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.Statistics.GrantsCreated)
	assert.Equal(t, 1, srv.Len(string(models.KindGrant)))
	assert.Equal(t, 2, srv.Len(string(models.KindUser)))
	assert.Equal(t, 1, srv.Len(string(models.KindFunder)))

	for ref := range out.Result.Grants {
		assert.Contains(t, string(ref), srv.BaseURL())
	}
}
