package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
)

func TestBuiltinDeployments(t *testing.T) {
	d, err := engine.LookupDeployment("default")
	require.NoError(t, err)
	assert.Equal(t, "johnshopkins.edu", d.Domain)

	d, err = engine.LookupDeployment("harvard")
	require.NoError(t, err)
	assert.Equal(t, "harvard.edu", d.Domain)

	_, err = engine.LookupDeployment("nowhere")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegisterDeployment(t *testing.T) {
	require.NoError(t, engine.RegisterDeployment(engine.Deployment{
		Name:       "registry-test",
		Domain:     "example.edu",
		Comparator: engine.DefaultComparator{},
	}))
	err := engine.RegisterDeployment(engine.Deployment{
		Name:       "registry-test",
		Domain:     "other.edu",
		Comparator: engine.DefaultComparator{},
	})
	require.Error(t, err)

	var names []string
	for _, d := range engine.Deployments() {
		names = append(names, d.Name)
	}
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "registry-test")

	require.Error(t, engine.RegisterDeployment(engine.Deployment{Name: "no-comparator", Domain: "x.edu"}))
}
