package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/dump"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "grantsync v"+version)
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "pass")
}

func TestDeployments(t *testing.T) {
	out, err := execute(t, "deployments")
	require.NoError(t, err)
	assert.Contains(t, out, "default    johnshopkins.edu")
	assert.Contains(t, out, "harvard    harvard.edu")
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	yaml := fmt.Sprintf(`deployment: default
store:
  type: memory
watermark:
  file: %s
notify:
  type: none
logging:
  level: error
  output_paths: [%s]
`, filepath.Join(dir, "updates.txt"), filepath.Join(dir, "grantsync.log"))
	return testutil.WriteFile(t, "grantsync.yaml", []byte(yaml))
}

func TestRunLoadsDump(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	d, err := dump.New(config.DumpConfig{Compression: config.CompressionGzip})
	require.NoError(t, err)
	location := filepath.Join(dir, "funders.json.gz")
	require.NoError(t, d.Write(context.Background(), location, &dump.File{
		Mode:     engine.ModeFunder,
		PulledAt: time.Now(),
		Rows: []engine.Row{engine.NewRow(map[string]string{
			engine.ColPrimaryFunderLocalKey: "20000123",
			engine.ColPrimaryFunderName:     "National Science Foundation",
			engine.ColPrimaryFunderPolicy:   "policies/1",
			engine.ColUpdateTimestamp:       "2018-12-12 14:08:14.0",
		})},
	}))

	out, err := execute(t, "run", "--config", cfgPath, "--action", "load", location)
	require.NoError(t, err)
	assert.Contains(t, out, "1 funder records processed")

	history, err := os.ReadFile(filepath.Join(dir, "updates.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2018-12-12 14:08:14.0\n", string(history))
}

func TestRunRejectsBadAction(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--config", writeConfig(t, dir), "--action", "push")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestRunActionFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GRANTSYNC_ACTION", "push")
	_, err := execute(t, "run", "--config", writeConfig(t, dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestRunMissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
